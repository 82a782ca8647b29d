package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yuqie6/lifemap/internal/ai"
	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/layout"
	"github.com/yuqie6/lifemap/internal/pkg/config"
	"github.com/yuqie6/lifemap/internal/repository"
	"github.com/yuqie6/lifemap/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub

	Repos struct {
		Blobs *repository.BlobRepository
		State *repository.StateRepository
	}

	Services struct {
		Store       *service.RecordStore
		Lifecycle   *service.LifecycleService
		Attachments *service.AttachmentService
		Insight     *service.InsightService
		QuickAdd    *service.QuickAddService
		Graph       *service.GraphService
		Confirm     *service.ConfirmGate
		App         *service.App
	}

	Clients struct {
		LLM *ai.LLMClient
	}

	Index *service.ExperienceIndex
}

// NewCore 构建核心依赖；ctx 取消时关系图模拟随之销毁
func NewCore(ctx context.Context, cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, LogCloser: logCloser, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.Blobs = repository.NewBlobRepository(db.DB)
	// 安全模式：读退化为空数据，写返回持久化错误
	c.Repos.Blobs.SetReadOnly(db.SafeMode)
	c.Repos.State = repository.NewStateRepository(c.Repos.Blobs)

	// Clients
	c.Clients.LLM = ai.NewLLMClient(&ai.LLMConfig{
		APIKey:         cfg.AI.APIKey,
		BaseURL:        cfg.AI.BaseURL,
		Model:          cfg.AI.Model,
		EmbeddingModel: cfg.AI.EmbeddingModel,
		Timeout:        time.Duration(cfg.AI.TimeoutSec) * time.Second,
	})
	gateway := ai.NewInsightAnalyzer(c.Clients.LLM, ai.NewPageFetcher(0))

	// 语义索引（可选）：未配置嵌入模型时清单退化为全部标题
	var retriever service.ContextRetriever
	if cfg.Index.Enabled && c.Clients.LLM.CanEmbed() {
		idx, err := service.NewExperienceIndex(c.Clients.LLM, &service.IndexConfig{StoragePath: cfg.Index.StoragePath})
		if err != nil {
			slog.Warn("语义索引初始化失败，清单使用全部经历", "error", err)
		} else {
			c.Index = idx
			retriever = idx
		}
	}

	// Services
	s := &c.Services
	s.Store = service.OpenRecordStore(ctx, c.Repos.State)
	s.Store.SetPublisher(c.Hub)
	s.Lifecycle = service.NewLifecycleService(s.Store)
	s.Attachments = service.NewAttachmentService()
	s.Insight = service.NewInsightService(s.Store, s.Lifecycle, s.Attachments, gateway, &service.InsightConfig{
		Retriever: retriever,
		TopK:      cfg.Index.TopK,
	})
	s.Insight.SetPublisher(c.Hub)
	s.QuickAdd = service.NewQuickAddService(s.Lifecycle)
	s.Confirm = service.NewConfirmGate()
	s.Graph = service.NewGraphService(ctx, s.Store, LayoutParams(cfg.Layout))
	s.Graph.SetPublisher(c.Hub)
	s.App = service.NewApp(s.Store, s.Insight)
	s.App.SetPublisher(c.Hub)
	s.App.SetGraph(s.Graph)

	return c, nil
}

// LayoutParams 配置覆盖布局默认参数，非正值保持默认
func LayoutParams(lc config.LayoutConfig) layout.Params {
	p := layout.DefaultParams(lc.Width, lc.Height)
	if p.Width <= 0 || p.Height <= 0 {
		p.Width, p.Height = 800, 600
	}
	if lc.LinkDistance > 0 {
		p.LinkDistance = lc.LinkDistance
	}
	if lc.ChargeStrength != 0 {
		p.ChargeStrength = lc.ChargeStrength
	}
	if lc.CollideRadius > 0 {
		p.CollideRadius = lc.CollideRadius
	}
	if lc.TickMs > 0 {
		p.TickInterval = time.Duration(lc.TickMs) * time.Millisecond
	}
	return p
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.Services.Graph != nil {
		c.Services.Graph.Close()
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}

// RequireAIConfigured 检查 AI 是否已配置
func (c *Core) RequireAIConfigured() error {
	if c.Clients.LLM == nil || !c.Clients.LLM.IsConfigured() {
		return fmt.Errorf("AI API 未配置（请设置 LIFEMAP_API_KEY）")
	}
	return nil
}
