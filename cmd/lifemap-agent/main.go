package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuqie6/lifemap/internal/bootstrap"
	"github.com/yuqie6/lifemap/internal/handler"
	"github.com/yuqie6/lifemap/internal/httpapi"
	"github.com/yuqie6/lifemap/internal/pkg/config"
	"github.com/yuqie6/lifemap/internal/pkg/singleton"
)

func main() {
	// 单实例：重复启动时直接退出
	lock, err := singleton.Acquire("LifemapAgent")
	if errors.Is(err, singleton.ErrAlreadyRunning) {
		return
	}
	if err == nil {
		defer lock.Release()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath, cfgErr := config.DefaultConfigPath()
	if cfgErr == nil {
		if _, err := config.EnsureDefault(cfgPath); err != nil {
			slog.Warn("写入默认配置失败", "path", cfgPath, "error", err)
		}
	}

	rt, err := bootstrap.NewAgentRuntime(ctx, cfgPath)
	if err != nil {
		slog.Error("启动 Agent 失败", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	slog.Info("Lifemap Agent 已启动", "name", rt.Cfg.App.Name, "version", rt.Cfg.App.Version)

	uiServer, err := httpapi.Start(ctx, httpapi.DepsFromCore(rt.Core), httpapi.Options{ListenAddr: rt.Cfg.Server.ListenAddr})
	if err != nil {
		// 配置端口被占用时退回随机端口
		slog.Warn("配置端口不可用，改用随机端口", "addr", rt.Cfg.Server.ListenAddr, "error", err)
		uiServer, err = httpapi.Start(ctx, httpapi.DepsFromCore(rt.Core), httpapi.Options{ListenAddr: "127.0.0.1:0"})
		if err != nil {
			slog.Error("启动本地 UI/API 失败", "error", err)
		}
	}

	// ========== 系统托盘 ==========
	quitChan := make(chan struct{})

	trayCfg := &handler.TrayConfig{
		AppName: rt.Cfg.App.Name,
		OnOpen: func() {
			if uiServer != nil {
				handler.OpenUI(uiServer.BaseURL() + "/")
			}
		},
		OnQuit: func() {
			slog.Info("从托盘退出")
			close(quitChan)
		},
	}
	if rt.Inbox != nil {
		trayCfg.OnOpenInbox = func() {
			handler.OpenFolder(rt.Inbox.Dir())
		}
	}
	tray := handler.NewTrayHandler(trayCfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			slog.Info("收到系统退出信号")
			tray.Quit()
		case <-quitChan:
		}
	}()

	// 阻塞直到托盘退出
	tray.Run()

	slog.Info("正在关闭...")

	cancel()
	if uiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = uiServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	slog.Info("Lifemap Agent 已退出")
}
