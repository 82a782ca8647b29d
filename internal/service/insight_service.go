package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
	"golang.org/x/sync/singleflight"
)

// 单飞的动作键
const (
	ActionAnalyze   = "analyze"
	ActionChecklist = "checklist"
	ActionImport    = "import"
)

const (
	msgNoExperiences     = "분석할 경험이 없습니다. 먼저 경험을 추가해주세요."
	msgAnalyzeFailed     = "분석에 실패했습니다. 다시 시도해주세요."
	msgFileImportFailed  = "파일 분석에 실패했습니다. 다시 시도해주세요."
	msgFileImportEmpty   = "파일에서 경험을 찾을 수 없습니다."
	msgDraftExtractFail  = "파일 분석에 실패했습니다. 직접 입력해주세요."
	msgURLRequired       = "URL을 입력해주세요."
	msgURLInvalid        = "올바른 URL 형식이 아닙니다. (http:// 또는 https:// 포함)"
	msgURLImportFailed   = "링크를 분석하는 중 오류가 발생했습니다. 접근 권한이 없거나 지원하지 않는 형식일 수 있습니다."
	msgURLImportEmpty    = "해당 링크에서 유의미한 경험을 찾지 못했습니다. 다른 링크를 시도해보세요."
	defaultChecklistTopK = 5
)

// InsightService 远端洞察相关的用例：分析、清单、导入
// 每个动作单飞，进行中的同名请求直接共享结果
type InsightService struct {
	store       *RecordStore
	lifecycle   *LifecycleService
	attachments *AttachmentService
	gateway     InsightGateway
	retriever   ContextRetriever
	topK        int

	group     singleflight.Group
	mu        sync.Mutex
	inflight  map[string]int
	publisher Publisher
}

// InsightConfig 可选项
type InsightConfig struct {
	Retriever ContextRetriever // 为 nil 时清单使用全部有效经历标题
	TopK      int
}

// NewInsightService 创建服务
func NewInsightService(store *RecordStore, lifecycle *LifecycleService, attachments *AttachmentService, gateway InsightGateway, cfg *InsightConfig) *InsightService {
	if cfg == nil {
		cfg = &InsightConfig{}
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultChecklistTopK
	}
	return &InsightService{
		store:       store,
		lifecycle:   lifecycle,
		attachments: attachments,
		gateway:     gateway,
		retriever:   cfg.Retriever,
		topK:        topK,
		inflight:    make(map[string]int),
	}
}

// SetPublisher 导入完成通知
func (s *InsightService) SetPublisher(p Publisher) {
	s.publisher = p
}

// InFlight 某个动作是否正在进行（界面据此禁用按钮）
func (s *InsightService) InFlight(action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[action] > 0
}

func (s *InsightService) begin(action string) func() {
	s.mu.Lock()
	s.inflight[action]++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight[action]--
		if s.inflight[action] <= 0 {
			delete(s.inflight, action)
		}
		s.mu.Unlock()
	}
}

// Analyze 对有效经历做整体分析；回收站中的记录不会发送
func (s *InsightService) Analyze(ctx context.Context) (*model.AnalysisResult, error) {
	active := ActiveExperiences(s.store.Experiences())
	if len(active) == 0 {
		return nil, apperr.Validation("experiences", msgNoExperiences)
	}

	v, err, shared := s.group.Do(ActionAnalyze, func() (any, error) {
		done := s.begin(ActionAnalyze)
		defer done()

		briefs := make([]model.ExperienceBrief, 0, len(active))
		for _, e := range active {
			briefs = append(briefs, e.Brief())
		}
		result, err := s.gateway.Analyze(ctx, briefs)
		if err != nil {
			slog.Error("分析失败", "error", err)
			return nil, apperr.Remote(msgAnalyzeFailed, err)
		}
		result.Normalize()
		slog.Info("分析完成", "experiences", len(briefs), "relationships", len(result.Relationships))
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("分析请求合并", "action", ActionAnalyze)
	}
	result := *v.(*model.AnalysisResult)
	return &result, nil
}

// GenerateChecklist 为行动计划项生成清单；失败时返回占位项，不报错
func (s *InsightService) GenerateChecklist(ctx context.Context, action string) []string {
	key := ActionChecklist + ":" + action
	v, _, _ := s.group.Do(key, func() (any, error) {
		done := s.begin(key)
		defer done()
		return s.gateway.GenerateChecklist(ctx, action, s.relatedTitles(ctx, action)), nil
	})
	items, _ := v.([]string)
	return append([]string{}, items...)
}

func (s *InsightService) relatedTitles(ctx context.Context, action string) []string {
	active := ActiveExperiences(s.store.Experiences())
	all := make([]string, 0, len(active))
	for _, e := range active {
		all = append(all, e.Title)
	}
	if s.retriever == nil {
		return all
	}
	if err := s.retriever.Sync(ctx, active); err != nil {
		slog.Warn("同步经历索引失败，使用全部经历", "error", err)
		return all
	}
	related, err := s.retriever.Related(ctx, action, active, s.topK)
	if err != nil || len(related) == 0 {
		if err != nil {
			slog.Warn("检索相关经历失败，使用全部经历", "error", err)
		}
		return all
	}
	titles := make([]string, 0, len(related))
	for _, e := range related {
		titles = append(titles, e.Title)
	}
	return titles
}

// ImportFile 从文件提取经历并批量新建；源文件不超过上限时附加到每条记录
func (s *InsightService) ImportFile(ctx context.Context, name, mimeType string, data []byte) ([]model.Experience, error) {
	done := s.begin(ActionImport)
	defer done()

	mimeType = DetectMIME(mimeType, data)
	items, err := s.gateway.ExtractFromFile(ctx, data, mimeType)
	if err != nil {
		slog.Error("文件导入失败", "name", name, "mime", mimeType, "error", err)
		return nil, apperr.Remote(msgFileImportFailed, err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound(msgFileImportEmpty)
	}

	defaults := ImportDefaults()
	if int64(len(data)) < model.MaxAttachmentBytes {
		defaults.Attachments = []model.Attachment{*s.attachments.Encode(name, mimeType, data)}
	}
	created, err := s.lifecycle.BulkCreate(ctx, extractedDrafts(items), defaults)
	if err != nil {
		return nil, err
	}
	s.publishImport("file", name, len(created))
	return created, nil
}

// ValidateImportURL 校验导入链接
func ValidateImportURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.Validation("url", msgURLRequired)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.Validation("url", msgURLInvalid)
	}
	return u.String(), nil
}

// ImportURL 从网页提取经历并批量新建
func (s *InsightService) ImportURL(ctx context.Context, raw string) ([]model.Experience, error) {
	target, err := ValidateImportURL(raw)
	if err != nil {
		return nil, err
	}
	done := s.begin(ActionImport)
	defer done()

	items, err := s.gateway.ExtractFromURL(ctx, target)
	if err != nil {
		slog.Error("链接导入失败", "url", target, "error", err)
		return nil, apperr.Remote(msgURLImportFailed, err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound(msgURLImportEmpty)
	}

	created, err := s.lifecycle.BulkCreate(ctx, extractedDrafts(items), ImportDefaults())
	if err != nil {
		return nil, err
	}
	s.publishImport("url", target, len(created))
	return created, nil
}

// ExtractDraft 用文件内容预填单条表单：第一条提取结果的非空字段覆盖草稿
func (s *InsightService) ExtractDraft(ctx context.Context, draft model.Draft, name, mimeType string, data []byte) (model.Draft, error) {
	mimeType = DetectMIME(mimeType, data)
	items, err := s.gateway.ExtractFromFile(ctx, data, mimeType)
	if err != nil {
		return draft, apperr.Remote(msgDraftExtractFail, err)
	}
	if len(items) > 0 {
		first := items[0]
		draft.Title = firstNonBlank(first.Title, draft.Title)
		draft.Description = firstNonBlank(first.Description, draft.Description)
		draft.StartDate = firstNonBlank(model.SanitizeDateInput(first.StartDate), draft.StartDate)
		draft.EndDate = firstNonBlank(model.SanitizeDateInput(first.EndDate), draft.EndDate)
		draft.Category = firstNonBlank(first.Category, draft.Category)
	}
	if int64(len(data)) < model.MaxAttachmentBytes {
		draft.Attachments = append(draft.Attachments, *s.attachments.Encode(name, mimeType, data))
	}
	return draft, nil
}

func extractedDrafts(items []model.ExtractedExperience) []model.Draft {
	drafts := make([]model.Draft, 0, len(items))
	for _, it := range items {
		drafts = append(drafts, it.ToDraft())
	}
	return drafts
}

func (s *InsightService) publishImport(source, name string, count int) {
	slog.Info("导入完成", "source", source, "name", name, "count", count)
	if s.publisher != nil {
		s.publisher.Publish(eventbus.NewEvent(eventbus.TypeImportFinished, map[string]any{
			"source": source,
			"name":   name,
			"count":  count,
		}))
	}
}

