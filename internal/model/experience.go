package model

import (
	"encoding/base64"
	"strings"
	"time"
)

// 预设分类
const (
	CategoryExternal = "대외활동"
	CategoryContest  = "공모전"
	CategoryPartTime = "아르바이트"
	CategoryCampus   = "교내활동"
	CategoryGrades   = "성적"
)

// 预设情绪
const (
	EmotionJoy       = "즐거움"
	EmotionConfusion = "당황"
	EmotionFear      = "두려움"
	EmotionFamiliar  = "익숙함"
)

const (
	// CustomSentinel 表单中选择“直接输入”时的占位值，实际值取自由输入字段
	CustomSentinel = "custom"

	DefaultSatisfaction = 5
	MinSatisfaction     = 1
	MaxSatisfaction     = 10

	// MaxAttachmentBytes 单个附件上限 10 MiB（采集时校验）
	MaxAttachmentBytes = 10 * 1024 * 1024
)

var PresetCategories = []string{CategoryExternal, CategoryContest, CategoryPartTime, CategoryCampus, CategoryGrades}

var PresetEmotions = []string{EmotionJoy, EmotionConfusion, EmotionFear, EmotionFamiliar}

// Attachment 经历附件，Data 为 base64 data URL
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// PayloadSize 返回 data URL 解码后的字节数（估算，不做完整解码）
func (a Attachment) PayloadSize() int64 {
	payload := a.Data
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	payload = strings.TrimRight(payload, "=")
	return int64(base64.RawStdEncoding.DecodedLen(len(payload)))
}

// Experience 一条人生经历（规范形态）
type Experience struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	StartDate    string       `json:"startDate"`
	EndDate      string       `json:"endDate"`
	Description  string       `json:"description"`
	Category     string       `json:"category"`
	Satisfaction int          `json:"satisfaction"`
	Emotion      string       `json:"emotion"`
	Tags         []string     `json:"tags"`
	Attachments  []Attachment `json:"attachments"`
	DeletedAt    *time.Time   `json:"deletedAt,omitempty"`
}

// IsTrashed 是否在回收站中
func (e Experience) IsTrashed() bool {
	return e.DeletedAt != nil
}

// Clone 深拷贝，避免快照之间共享切片
func (e Experience) Clone() Experience {
	out := e
	out.Tags = append([]string{}, e.Tags...)
	out.Attachments = append([]Attachment{}, e.Attachments...)
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// Brief 发送给远端分析的精简视图
func (e Experience) Brief() ExperienceBrief {
	return ExperienceBrief{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
	}
}

// CloneExperiences 深拷贝列表
func CloneExperiences(list []Experience) []Experience {
	out := make([]Experience, 0, len(list))
	for _, e := range list {
		out = append(out, e.Clone())
	}
	return out
}

// Draft 新建/编辑表单（或导入条目）的输入
type Draft struct {
	Title          string       `json:"title" validate:"required"`
	Description    string       `json:"description" validate:"required"`
	StartDate      string       `json:"startDate,omitempty"`
	EndDate        string       `json:"endDate,omitempty"`
	Category       string       `json:"category,omitempty"`
	CustomCategory string       `json:"customCategory,omitempty"`
	Emotion        string       `json:"emotion,omitempty"`
	CustomEmotion  string       `json:"customEmotion,omitempty"`
	Satisfaction   int          `json:"satisfaction,omitempty" validate:"omitempty,min=1,max=10"`
	Tags           []string     `json:"tags,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// DraftFromExperience 用已有记录填充编辑表单
func DraftFromExperience(e Experience) Draft {
	return Draft{
		Title:        e.Title,
		Description:  e.Description,
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		Category:     e.Category,
		Emotion:      e.Emotion,
		Satisfaction: e.Satisfaction,
		Tags:         append([]string{}, e.Tags...),
		Attachments:  append([]Attachment{}, e.Attachments...),
	}
}
