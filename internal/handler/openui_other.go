//go:build !windows

package handler

import (
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// OpenUI 用系统默认浏览器打开本地 UI
func OpenUI(url string) {
	openTarget(url)
}

// OpenFolder 用文件管理器打开目录
func OpenFolder(dir string) {
	openTarget(dir)
}

func openTarget(target string) {
	t := strings.TrimSpace(target)
	if t == "" {
		return
	}
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	if err := exec.Command(name, t).Start(); err != nil {
		slog.Warn("打开失败", "target", t, "error", err)
	}
}
