//go:build !windows

package handler

import "errors"

var errAutoStartUnsupported = errors.New("当前平台不支持开机自启动")

func autoStartSupported() bool { return false }

func isAutoStartEnabled() bool { return false }

func enableAutoStart() error { return errAutoStartUnsupported }

func disableAutoStart() error { return errAutoStartUnsupported }
