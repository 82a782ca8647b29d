package handler

import (
	"log/slog"

	"github.com/getlantern/systray"
)

// TrayHandler 系统托盘处理器
type TrayHandler struct {
	appName     string
	onOpen      func()
	onOpenInbox func()
	onQuit      func()
}

// TrayConfig 托盘配置
type TrayConfig struct {
	AppName string
	OnOpen  func()
	// OnOpenInbox 为 nil 时不显示收件箱菜单
	OnOpenInbox func()
	OnQuit      func()
}

// NewTrayHandler 创建托盘处理器
func NewTrayHandler(cfg *TrayConfig) *TrayHandler {
	return &TrayHandler{
		appName:     cfg.AppName,
		onOpen:      cfg.OnOpen,
		onOpenInbox: cfg.OnOpenInbox,
		onQuit:      cfg.OnQuit,
	}
}

// Run 启动托盘（阻塞）
func (t *TrayHandler) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit 退出托盘
func (t *TrayHandler) Quit() {
	systray.Quit()
}

func (t *TrayHandler) onReady() {
	systray.SetTitle(t.appName)
	systray.SetTooltip(t.appName + " - 나의 경험 지도")

	mOpen := systray.AddMenuItem("열기", "타임라인 열기")
	var inboxCh <-chan struct{}
	if t.onOpenInbox != nil {
		inboxCh = systray.AddMenuItem("가져오기 폴더", "파일을 넣으면 자동으로 경험을 추출합니다").ClickedCh
	}
	systray.AddSeparator()
	mAutoStart := systray.AddMenuItemCheckbox("시작 시 자동 실행", "로그인할 때 자동으로 실행", isAutoStartEnabled())
	if !autoStartSupported() {
		mAutoStart.Disable()
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("종료", "종료")

	go func() {
		for {
			select {
			case <-mOpen.ClickedCh:
				if t.onOpen != nil {
					t.onOpen()
				}
			case <-inboxCh:
				t.onOpenInbox()
			case <-mAutoStart.ClickedCh:
				t.toggleAutoStart(mAutoStart)
			case <-mQuit.ClickedCh:
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

func (t *TrayHandler) toggleAutoStart(item *systray.MenuItem) {
	if item.Checked() {
		if err := disableAutoStart(); err != nil {
			slog.Warn("禁用开机自启动失败", "error", err)
			return
		}
		item.Uncheck()
		return
	}
	if err := enableAutoStart(); err != nil {
		slog.Warn("启用开机自启动失败", "error", err)
		return
	}
	item.Check()
}

func (t *TrayHandler) onExit() {}
