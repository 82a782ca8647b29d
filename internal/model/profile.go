package model

import (
	"strconv"
	"strings"
)

// DefaultBirthYear 出生年份无法解析时的兜底
const DefaultBirthYear = 2000

// UserProfile 用户档案，仅在重置时清除
type UserProfile struct {
	Name      string `json:"name" validate:"required"`
	BirthYear string `json:"birthYear" validate:"required,numeric,len=4"`
	Status    string `json:"status" validate:"required"`
}

// BirthYearInt 解析出生年份，失败返回 DefaultBirthYear
func (p UserProfile) BirthYearInt() int {
	year, err := strconv.Atoi(strings.TrimSpace(p.BirthYear))
	if err != nil || year <= 0 {
		return DefaultBirthYear
	}
	return year
}

// Normalized 去除首尾空白
func (p UserProfile) Normalized() UserProfile {
	return UserProfile{
		Name:      strings.TrimSpace(p.Name),
		BirthYear: strings.TrimSpace(p.BirthYear),
		Status:    strings.TrimSpace(p.Status),
	}
}
