package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

const (
	msgTitleRequired        = "제목과 내용을 입력해주세요."
	msgSatisfactionRange    = "만족도는 1에서 10 사이여야 합니다."
	defaultImportTitle      = "제목 없음"
	defaultImportDesc       = ""
	defaultCategoryFallback = model.CategoryExternal
	defaultEmotionFallback  = model.EmotionJoy
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LifecycleService 经历的唯一变更入口
type LifecycleService struct {
	store *RecordStore
	now   func() time.Time
	newID func() string
}

// NewLifecycleService 创建服务
func NewLifecycleService(store *RecordStore) *LifecycleService {
	return &LifecycleService{store: store, now: time.Now, newID: uuid.NewString}
}

// NewDraft 新建表单的默认值；year>0 时日期预填为该年 1 月 1 日
func NewDraft(year int, now time.Time) model.Draft {
	date := model.FormatDate(now)
	if year > 0 {
		date = fmt.Sprintf("%d.01.01", year)
	}
	return model.Draft{
		StartDate:    date,
		EndDate:      date,
		Category:     model.CategoryExternal,
		Emotion:      model.EmotionJoy,
		Satisfaction: model.DefaultSatisfaction,
		Tags:         []string{},
		Attachments:  []model.Attachment{},
	}
}

// Create 新建经历；标题或内容为空时不写入
func (s *LifecycleService) Create(ctx context.Context, draft model.Draft) (*model.Experience, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	exp := s.build(s.newID(), draft, BulkDefaults{})

	err := s.store.Mutate(ctx, func(list []model.Experience) ([]model.Experience, bool, error) {
		return append(list, exp), true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("新增经历", "id", exp.ID, "title", exp.Title)
	out := exp.Clone()
	return &out, nil
}

// Update 整体替换可编辑字段；id 不存在时返回 nil, nil
// 删除状态保持不变，草稿未给出 tags 时沿用原值
func (s *LifecycleService) Update(ctx context.Context, id string, draft model.Draft) (*model.Experience, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	var updated *model.Experience
	err := s.store.Mutate(ctx, func(list []model.Experience) ([]model.Experience, bool, error) {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			next := s.build(id, draft, BulkDefaults{})
			if draft.Tags == nil {
				next.Tags = list[i].Tags
			}
			next.DeletedAt = list[i].DeletedAt
			list[i] = next
			c := next.Clone()
			updated = &c
			return list, true, nil
		}
		return list, false, nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		slog.Debug("更新目标不存在，忽略", "id", id)
		return nil, nil
	}
	return updated, nil
}

// SoftDelete 移入回收站；重复调用刷新删除时间。返回是否命中
func (s *LifecycleService) SoftDelete(ctx context.Context, id string) (bool, error) {
	return s.touch(ctx, id, func(e *model.Experience) bool {
		now := s.now()
		e.DeletedAt = &now
		return true
	})
}

// Restore 从回收站恢复；本来就未删除时不写盘
func (s *LifecycleService) Restore(ctx context.Context, id string) (bool, error) {
	return s.touch(ctx, id, func(e *model.Experience) bool {
		if e.DeletedAt == nil {
			return false
		}
		e.DeletedAt = nil
		return true
	})
}

// PermanentDelete 永久删除，调用方负责二次确认
func (s *LifecycleService) PermanentDelete(ctx context.Context, id string) (bool, error) {
	found := false
	err := s.store.Mutate(ctx, func(list []model.Experience) ([]model.Experience, bool, error) {
		out := list[:0]
		for _, e := range list {
			if e.ID == id {
				found = true
				continue
			}
			out = append(out, e)
		}
		return out, found, nil
	})
	if err != nil {
		return false, err
	}
	if found {
		slog.Info("永久删除经历", "id", id)
	}
	return found, nil
}

func (s *LifecycleService) touch(ctx context.Context, id string, fn func(e *model.Experience) bool) (bool, error) {
	found := false
	err := s.store.Mutate(ctx, func(list []model.Experience) ([]model.Experience, bool, error) {
		for i := range list {
			if list[i].ID == id {
				found = true
				return list, fn(&list[i]), nil
			}
		}
		return list, false, nil
	})
	return found, err
}

// BulkDefaults 批量新建时各字段的兜底值
type BulkDefaults struct {
	Title        string
	Description  string
	Category     string
	Emotion      string
	Satisfaction int
	// Attachments 附加到每条新记录
	Attachments []model.Attachment
}

// ImportDefaults 文件/链接导入的默认值
func ImportDefaults() BulkDefaults {
	return BulkDefaults{
		Title:        defaultImportTitle,
		Description:  defaultImportDesc,
		Category:     model.CategoryExternal,
		Emotion:      model.EmotionJoy,
		Satisfaction: model.DefaultSatisfaction,
	}
}

// BulkCreate 批量新建（导入、卡片、里程碑），一次写盘；不校验必填
func (s *LifecycleService) BulkCreate(ctx context.Context, drafts []model.Draft, defaults BulkDefaults) ([]model.Experience, error) {
	if len(drafts) == 0 {
		return []model.Experience{}, nil
	}
	created := make([]model.Experience, 0, len(drafts))
	for _, d := range drafts {
		if d.Satisfaction != 0 && (d.Satisfaction < model.MinSatisfaction || d.Satisfaction > model.MaxSatisfaction) {
			d.Satisfaction = 0
		}
		created = append(created, s.build(s.newID(), d, defaults))
	}

	err := s.store.Mutate(ctx, func(list []model.Experience) ([]model.Experience, bool, error) {
		return append(list, model.CloneExperiences(created)...), true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("批量新增经历", "count", len(created))
	return created, nil
}

// build 按草稿生成规范记录
func (s *LifecycleService) build(id string, d model.Draft, defaults BulkDefaults) model.Experience {
	today := model.FormatDate(s.now())

	start := model.SanitizeDateInput(d.StartDate)
	if start == "" {
		start = today
	}
	end := model.SanitizeDateInput(d.EndDate)
	if end == "" {
		end = start
	}

	satisfaction := d.Satisfaction
	if satisfaction == 0 {
		satisfaction = defaults.Satisfaction
	}
	if satisfaction == 0 {
		satisfaction = model.DefaultSatisfaction
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = defaults.Title
	}
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		desc = defaults.Description
	}

	tags := append([]string{}, d.Tags...)
	attachments := append([]model.Attachment{}, d.Attachments...)
	attachments = append(attachments, cloneAttachmentsWithNewIDs(defaults.Attachments, s.newID)...)

	return model.Experience{
		ID:           id,
		Title:        title,
		StartDate:    start,
		EndDate:      end,
		Description:  desc,
		Category:     resolveChoice(d.Category, d.CustomCategory, firstNonBlank(defaults.Category, defaultCategoryFallback)),
		Satisfaction: satisfaction,
		Emotion:      resolveChoice(d.Emotion, d.CustomEmotion, firstNonBlank(defaults.Emotion, defaultEmotionFallback)),
		Tags:         tags,
		Attachments:  attachments,
	}
}

// resolveChoice 处理 custom 占位值；为空时使用 fallback
func resolveChoice(value, custom, fallback string) string {
	value = strings.TrimSpace(value)
	if value == model.CustomSentinel {
		value = strings.TrimSpace(custom)
	}
	if value == "" {
		return fallback
	}
	return value
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cloneAttachmentsWithNewIDs(in []model.Attachment, newID func() string) []model.Attachment {
	out := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		a.ID = newID()
		out = append(out, a)
	}
	return out
}

// validateDraft 手动新建/编辑的校验
func validateDraft(d model.Draft) error {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			switch first.Field() {
			case "Satisfaction":
				return apperr.Validation("satisfaction", msgSatisfactionRange)
			default:
				return apperr.Validation(strings.ToLower(first.Field()), msgTitleRequired)
			}
		}
		return apperr.Validation("", msgTitleRequired)
	}
	for _, a := range d.Attachments {
		if a.PayloadSize() > model.MaxAttachmentBytes {
			return apperr.Validation("attachments", tooLargeMessage(model.MaxAttachmentBytes))
		}
	}
	return nil
}
