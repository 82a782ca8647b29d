package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/lifemap/internal/model"
	"gorm.io/gorm"
)

// 持久化使用的两个 key，沿用历史数据里的名字
const (
	ProfileKey     = "userProfile"
	ExperiencesKey = "experiences"
)

// StateRepository 档案与经历列表的持久化
// 读失败一律降级为空数据并记 warn，写失败返回错误
type StateRepository struct {
	blobs *BlobRepository
	newID func() string
}

// NewStateRepository 创建仓储
func NewStateRepository(blobs *BlobRepository) *StateRepository {
	return &StateRepository{blobs: blobs, newID: uuid.NewString}
}

// NewStateRepositoryFromDB 便捷构造
func NewStateRepositoryFromDB(db *gorm.DB) *StateRepository {
	return NewStateRepository(NewBlobRepository(db))
}

// LoadProfile 读取档案，缺失或损坏返回 nil
func (r *StateRepository) LoadProfile(ctx context.Context) *model.UserProfile {
	raw, ok, err := r.blobs.Get(ctx, ProfileKey)
	if err != nil {
		slog.Warn("读取用户档案失败，按未设置处理", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		slog.Warn("用户档案数据损坏，按未设置处理", "error", err)
		return nil
	}
	return &model.UserProfile{
		Name:      anyString(fields["name"]),
		BirthYear: anyString(fields["birthYear"]),
		Status:    anyString(fields["status"]),
	}
}

// LoadExperiences 读取经历列表并做一次性归一化，缺失或损坏返回空列表
func (r *StateRepository) LoadExperiences(ctx context.Context) []model.Experience {
	raw, ok, err := r.blobs.Get(ctx, ExperiencesKey)
	if err != nil {
		slog.Warn("读取经历列表失败，按空列表处理", "error", err)
		return []model.Experience{}
	}
	if !ok {
		return []model.Experience{}
	}

	var stored []storedExperience
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		slog.Warn("经历数据损坏，按空列表处理", "error", err)
		return []model.Experience{}
	}

	out := make([]model.Experience, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.normalize(r.newID))
	}
	return out
}

// SaveProfile 覆盖写入档案
func (r *StateRepository) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("序列化用户档案失败: %w", err)
	}
	return r.blobs.Put(ctx, ProfileKey, string(data))
}

// SaveExperiences 覆盖写入整个经历列表
func (r *StateRepository) SaveExperiences(ctx context.Context, list []model.Experience) error {
	if list == nil {
		list = []model.Experience{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("序列化经历列表失败: %w", err)
	}
	return r.blobs.Put(ctx, ExperiencesKey, string(data))
}

// Reset 清空档案与经历
func (r *StateRepository) Reset(ctx context.Context) error {
	return r.blobs.Delete(ctx, ProfileKey, ExperiencesKey)
}

// storedExperience 兼容历史数据的宽松形态
type storedExperience struct {
	ID           flexString         `json:"id"`
	Title        flexString         `json:"title"`
	StartDate    flexString         `json:"startDate"`
	EndDate      flexString         `json:"endDate"`
	Date         flexString         `json:"date"`
	Description  flexString         `json:"description"`
	Category     flexString         `json:"category"`
	Satisfaction flexNumber         `json:"satisfaction"`
	EnergyLevel  flexNumber         `json:"energyLevel"`
	Emotion      flexString         `json:"emotion"`
	Tags         []string           `json:"tags"`
	Attachments  []model.Attachment `json:"attachments"`
	DeletedAt    flexString         `json:"deletedAt"`
}

func (s storedExperience) normalize(newID func() string) model.Experience {
	e := model.Experience{
		ID:          strings.TrimSpace(string(s.ID)),
		Title:       string(s.Title),
		Description: string(s.Description),
		Category:    string(s.Category),
		Emotion:     string(s.Emotion),
		Tags:        s.Tags,
		Attachments: s.Attachments,
	}
	if e.ID == "" {
		e.ID = newID()
	}

	start := firstNonEmpty(string(s.StartDate), string(s.Date))
	end := firstNonEmpty(string(s.EndDate), string(s.Date), start)
	e.StartDate = model.NormalizeStoredDate(start)
	e.EndDate = model.NormalizeStoredDate(end)

	e.Satisfaction = model.DefaultSatisfaction
	if v, ok := s.Satisfaction.toInt(); ok {
		e.Satisfaction = v
	} else if v, ok := s.EnergyLevel.toInt(); ok {
		e.Satisfaction = v
	}
	e.Satisfaction = clampSatisfaction(e.Satisfaction)

	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Attachments == nil {
		e.Attachments = []model.Attachment{}
	}

	if deleted := strings.TrimSpace(string(s.DeletedAt)); deleted != "" {
		t, err := time.Parse(time.RFC3339, deleted)
		if err != nil {
			// 时间戳无法解析时仍视为已删除
			t = time.Time{}
		}
		e.DeletedAt = &t
	}
	return e
}

func clampSatisfaction(v int) int {
	if v < model.MinSatisfaction {
		return model.MinSatisfaction
	}
	if v > model.MaxSatisfaction {
		return model.MaxSatisfaction
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// flexString 接受字符串、数字或 null
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("无法解析为字符串: %s", string(b))
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber 接受数字或数字字符串；0 视为缺失
type flexNumber struct {
	value float64
	set   bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	} else {
		raw = string(b)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		// 非数字按缺失处理
		return nil
	}
	f.value, f.set = v, true
	return nil
}

func (f flexNumber) toInt() (int, bool) {
	if !f.set || f.value == 0 {
		return 0, false
	}
	return int(math.Round(f.value)), true
}

func anyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
