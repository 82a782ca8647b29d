// Package httpapi 本地 HTTP 接口：JSON API、SSE 事件流与内置 UI。
package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/yuqie6/lifemap/internal/bootstrap"
	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/service"
	"github.com/yuqie6/lifemap/internal/uiassets"
)

// Deps 接口层依赖的服务
type Deps struct {
	Name    string
	Version string

	Hub         *eventbus.Hub
	Store       *service.RecordStore
	Lifecycle   *service.LifecycleService
	Attachments *service.AttachmentService
	Insight     *service.InsightService
	QuickAdd    *service.QuickAddService
	Graph       *service.GraphService
	Confirm     *service.ConfirmGate
	App         *service.App

	// UI 静态资源，为 nil 时不挂载
	UI fs.FS
}

// DepsFromCore 从核心依赖组装
func DepsFromCore(c *bootstrap.Core) Deps {
	return Deps{
		Name:        c.Cfg.App.Name,
		Version:     c.Cfg.App.Version,
		Hub:         c.Hub,
		Store:       c.Services.Store,
		Lifecycle:   c.Services.Lifecycle,
		Attachments: c.Services.Attachments,
		Insight:     c.Services.Insight,
		QuickAdd:    c.Services.QuickAdd,
		Graph:       c.Services.Graph,
		Confirm:     c.Services.Confirm,
		App:         c.Services.App,
	}
}

// LocalServer 本地 HTTP 服务器
type LocalServer struct {
	ln      net.Listener
	srv     *http.Server
	baseURL string
}

// Options 服务器启动配置
type Options struct {
	ListenAddr string // e.g. "127.0.0.1:0"
}

// Start 启动本地 HTTP 服务器
func Start(ctx context.Context, deps Deps, opts Options) (*LocalServer, error) {
	if deps.Store == nil || deps.App == nil {
		return nil, fmt.Errorf("deps 未初始化")
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, err
	}

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	baseURL := "http://127.0.0.1:" + portStr

	if deps.UI == nil {
		var uiSource string
		deps.UI, uiSource = pickUIFS()
		slog.Info("UI 资源来源", "source", uiSource)
	}

	srv := &http.Server{
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ls := &LocalServer{ln: ln, srv: srv, baseURL: baseURL}

	go func() {
		<-ctx.Done()
		_ = ls.Shutdown(context.Background())
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server 异常退出", "error", err)
		}
	}()

	writeBaseURLFile(baseURL)
	slog.Info("本地 HTTP 已启动", "base_url", baseURL)
	return ls, nil
}

// NewRouter 注册所有路由
func NewRouter(deps Deps) http.Handler {
	if deps.Hub == nil {
		deps.Hub = eventbus.NewHub()
	}
	api := newAPI(deps)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", api.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", api.handleSSE)
		r.Get("/state", api.handleState)
		r.Get("/profile", api.handleGetProfile)
		r.Post("/profile", api.handleCompleteProfile)
		r.Get("/timeline", api.handleTimeline)
		r.Get("/guide", api.handleGuide)

		r.Route("/experiences", func(r chi.Router) {
			r.Get("/", api.handleListExperiences)
			r.Post("/", api.handleCreateExperience)
			r.Get("/draft", api.handleNewDraft)
			r.Post("/attachments", api.handleCaptureAttachment)
			r.Post("/extract", api.handleExtractDraft)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", api.handleGetExperience)
				r.Put("/", api.handleUpdateExperience)
				r.Post("/trash", api.handleTrash)
				r.Post("/restore", api.handleRestore)
				r.Post("/purge", api.handleArmPurge)
				r.Post("/purge/confirm", api.handleConfirmPurge)
				r.Post("/purge/cancel", api.handleCancel)
			})
		})

		r.Post("/analyze", api.handleAnalyze)
		r.Post("/analysis/show", api.handleShowAnalysis)
		r.Post("/analysis/back", api.handleBack)
		r.Post("/checklist", api.handleChecklist)

		r.Post("/import/file", api.handleImportFile)
		r.Post("/import/url", api.handleImportURL)

		r.Get("/cards", api.handleListCards)
		r.Post("/cards", api.handleAddCards)
		r.Get("/milestones", api.handleListMilestones)
		r.Post("/milestones", api.handleAddMilestones)

		r.Route("/graph", func(r chi.Router) {
			r.Post("/start", api.handleGraphStart)
			r.Get("/frame", api.handleGraphFrame)
			r.Post("/drag", api.handleGraphDrag)
			r.Post("/stop", api.handleGraphStop)
		})

		r.Post("/reset", api.handleArmReset)
		r.Post("/reset/confirm", api.handleConfirmReset)
		r.Post("/reset/cancel", api.handleCancel)
	})

	if deps.UI != nil {
		r.Handle("/*", spaHandler(deps.UI, "index.html"))
	}
	return r
}

// BaseURL 返回服务器的基础 URL
func (s *LocalServer) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

// Shutdown 优雅关闭服务器
func (s *LocalServer) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// writeBaseURLFile 将服务地址写入文件供外部读取
func writeBaseURLFile(baseURL string) {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	dataDir := filepath.Join(filepath.Dir(exe), "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dataDir, "http_base_url.txt"), []byte(baseURL), 0o644)
}

// spaHandler 前端路由回退到 index.html
func spaHandler(assetFS fs.FS, index string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upath := r.URL.Path
		if upath == "" || upath == "/" {
			serveAsset(w, r, assetFS, index)
			return
		}

		clean := strings.TrimPrefix(path.Clean(upath), "/")
		if strings.Contains(clean, "..") {
			http.NotFound(w, r)
			return
		}

		if _, err := fs.Stat(assetFS, clean); err == nil {
			serveAsset(w, r, assetFS, clean)
			return
		}
		serveAsset(w, r, assetFS, index)
	})
}

// pickUIFS 优先使用可执行文件旁的 frontend/dist，否则用内嵌资源
func pickUIFS() (fs.FS, string) {
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "frontend", "dist")
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			return os.DirFS(dir), dir
		}
	}
	return uiassets.FS(), "embedded"
}

func serveAsset(w http.ResponseWriter, r *http.Request, assetFS fs.FS, name string) {
	f, err := assetFS.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	payload, err := io.ReadAll(f)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, stat.ModTime(), bytes.NewReader(payload))
}
