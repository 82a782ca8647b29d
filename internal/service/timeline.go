package service

import (
	"sort"
	"strings"
	"time"

	"github.com/yuqie6/lifemap/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006-01",
	"2006-1",
	"2006",
}

// ParseDate 宽松解析经历日期（本地时区），无法解析时返回 now
func ParseDate(s string, now time.Time) time.Time {
	t, ok := parseDate(s)
	if !ok {
		return now
	}
	return t
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Local(), true
		}
	}
	dashed := strings.ReplaceAll(s, ".", "-")
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, dashed, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsParseableDate 日期能否被解析
func IsParseableDate(s string) bool {
	_, ok := parseDate(s)
	return ok
}

// ActiveExperiences 未删除的经历，保持原顺序
func ActiveExperiences(list []model.Experience) []model.Experience {
	out := make([]model.Experience, 0, len(list))
	for _, e := range list {
		if !e.IsTrashed() {
			out = append(out, e)
		}
	}
	return out
}

// TrashedExperiences 回收站，按删除时间倒序
func TrashedExperiences(list []model.Experience) []model.Experience {
	out := make([]model.Experience, 0)
	for _, e := range list {
		if e.IsTrashed() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeletedAt.After(*out[j].DeletedAt)
	})
	return out
}

// YearRange 从当前年份倒序到出生年份（含两端）；当前年份早于出生年份时只返回当前年份
func YearRange(birthYear, currentYear int) []int {
	if currentYear < birthYear {
		return []int{currentYear}
	}
	out := make([]int, 0, currentYear-birthYear+1)
	for y := currentYear; y >= birthYear; y-- {
		out = append(out, y)
	}
	return out
}

// ByYear 某一年开始的未删除经历，按开始日期倒序（稳定）
func ByYear(list []model.Experience, year int, now time.Time) []model.Experience {
	type dated struct {
		e model.Experience
		t time.Time
	}
	items := make([]dated, 0)
	for _, e := range list {
		if e.IsTrashed() {
			continue
		}
		t := ParseDate(e.StartDate, now)
		if t.Year() == year {
			items = append(items, dated{e: e, t: t})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].t.After(items[j].t)
	})
	out := make([]model.Experience, 0, len(items))
	for _, it := range items {
		out = append(out, it.e)
	}
	return out
}

// YearSection 时间线上的一年
type YearSection struct {
	Year        int                `json:"year"`
	Experiences []model.Experience `json:"experiences"`
}

// TimelineView 时间线整体视图
type TimelineView struct {
	Years       []YearSection      `json:"years"`
	Trash       []model.Experience `json:"trash"`
	ActiveCount int                `json:"activeCount"`
	// Outside 开始年份落在年份范围之外的经历数量（不显示在时间线上）
	Outside int `json:"outside"`
}

// BuildTimeline 组装时间线视图
func BuildTimeline(profile *model.UserProfile, list []model.Experience, now time.Time) TimelineView {
	birth := model.DefaultBirthYear
	if profile != nil {
		birth = profile.BirthYearInt()
	}
	years := YearRange(birth, now.Year())

	active := ActiveExperiences(list)
	view := TimelineView{
		Years:       make([]YearSection, 0, len(years)),
		Trash:       TrashedExperiences(list),
		ActiveCount: len(active),
	}

	shown := 0
	for _, y := range years {
		items := ByYear(active, y, now)
		shown += len(items)
		view.Years = append(view.Years, YearSection{Year: y, Experiences: items})
	}
	view.Outside = len(active) - shown
	return view
}
