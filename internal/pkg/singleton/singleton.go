// Package singleton 保证同一用户会话内只运行一个常驻进程。
package singleton

import "errors"

// ErrAlreadyRunning 已有实例持有锁
var ErrAlreadyRunning = errors.New("已有实例在运行")

// Lock 进程级单实例锁，Release 之后可再次获取
type Lock interface {
	Release() error
}
