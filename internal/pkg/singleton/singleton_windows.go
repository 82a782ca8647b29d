//go:build windows

package singleton

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type mutexLock struct {
	h windows.Handle
}

// Acquire 以 Local\ 命名互斥量占位，范围限制在当前登录会话
func Acquire(name string) (Lock, error) {
	ptr, err := windows.UTF16PtrFromString(`Local\` + name + "SingletonMutex")
	if err != nil {
		return nil, fmt.Errorf("互斥量名称无效: %w", err)
	}
	h, err := windows.CreateMutex(nil, false, ptr)
	if err != nil {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
		if err == windows.ERROR_ALREADY_EXISTS {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("创建互斥量失败: %w", err)
	}
	return &mutexLock{h: h}, nil
}

func (l *mutexLock) Release() error {
	if l.h == 0 {
		return nil
	}
	err := windows.CloseHandle(l.h)
	l.h = 0
	return err
}
