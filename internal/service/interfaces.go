package service

import (
	"context"

	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
)

// 仓储/外部依赖的最小接口集合（ISP）

// StateRepository 档案与经历的持久化；Load 系列不返回错误
type StateRepository interface {
	LoadProfile(ctx context.Context) *model.UserProfile
	LoadExperiences(ctx context.Context) []model.Experience
	SaveProfile(ctx context.Context, profile model.UserProfile) error
	SaveExperiences(ctx context.Context, list []model.Experience) error
	Reset(ctx context.Context) error
}

// InsightGateway 远端洞察服务
type InsightGateway interface {
	Analyze(ctx context.Context, experiences []model.ExperienceBrief) (*model.AnalysisResult, error)
	GenerateChecklist(ctx context.Context, action string, related []string) []string
	ExtractFromFile(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedExperience, error)
	ExtractFromURL(ctx context.Context, rawURL string) ([]model.ExtractedExperience, error)
}

// ContextRetriever 为清单生成挑选相关经历
type ContextRetriever interface {
	Sync(ctx context.Context, active []model.Experience) error
	Related(ctx context.Context, query string, active []model.Experience, topK int) ([]model.Experience, error)
}

// Publisher 事件推送（SSE）
type Publisher interface {
	Publish(evt eventbus.Event)
}
