package model

import (
	"strings"
	"time"
)

// DateLayout 规范日期格式 YYYY.MM.DD
const DateLayout = "2006.01.02"

// FormatDate 输出规范日期
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SanitizeDateInput 仅保留数字与分隔符，并把 '-' 统一为 '.'
func SanitizeDateInput(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune('.')
		}
	}
	return b.String()
}

// NormalizeStoredDate 加载时归一化历史数据中的日期
// ISO 时间戳转成当地日期；其余只替换分隔符，无法解析的原样保留
func NormalizeStoredDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return FormatDate(t.Local())
		}
	}
	return strings.ReplaceAll(s, "-", ".")
}
