package bootstrap

import (
	"context"
	"log/slog"

	"github.com/yuqie6/lifemap/internal/collector"
	"github.com/yuqie6/lifemap/internal/eventbus"
)

// AgentRuntime 常驻进程：核心依赖 + 收件箱监听
type AgentRuntime struct {
	*Core

	Inbox *collector.InboxWatcher
}

// NewAgentRuntime 构建 Agent 运行时并启动后台任务
func NewAgentRuntime(ctx context.Context, cfgPath string) (*AgentRuntime, error) {
	core, err := NewCore(ctx, cfgPath)
	if err != nil {
		return nil, err
	}

	rt := &AgentRuntime{Core: core}

	if core.DB != nil && core.DB.SafeMode {
		// 安全模式：只提供读与诊断，不启动写库链路
		slog.Warn("数据库处于安全模式，收件箱监听不启动", "error", core.DB.MigrationError)
		return rt, nil
	}

	if core.Cfg.Inbox.Enabled {
		inbox, err := collector.NewInboxWatcher(&collector.InboxConfig{
			Dir:        core.Cfg.Inbox.Dir,
			DebounceMs: core.Cfg.Inbox.DebounceMs,
		}, core.Services.Insight)
		if err != nil {
			slog.Warn("收件箱监听创建失败", "error", err)
		} else {
			inbox.OnProcessed = func(name string, count int, err error) {
				if err == nil {
					return
				}
				rt.Hub.Publish(eventbus.NewEvent(eventbus.TypeImportFailed, map[string]any{
					"source": "inbox",
					"name":   name,
				}))
			}
			if err := inbox.Start(ctx); err != nil {
				_ = inbox.Stop()
				slog.Warn("收件箱监听启动失败", "error", err)
			} else {
				rt.Inbox = inbox
			}
		}
	}

	return rt, nil
}

// Close 关闭 Agent 运行时资源
func (rt *AgentRuntime) Close() error {
	if rt == nil {
		return nil
	}
	if rt.Inbox != nil {
		_ = rt.Inbox.Stop()
	}
	return rt.Core.Close()
}
