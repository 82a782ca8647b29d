//go:build !windows && !unix

package singleton

type noopLock struct{}

// Acquire 不支持进程锁的平台上总是成功
func Acquire(string) (Lock, error) {
	return noopLock{}, nil
}

func (noopLock) Release() error { return nil }
