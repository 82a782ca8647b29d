package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

// View 当前页面
type View string

const (
	ViewOnboarding View = "onboarding"
	ViewTimeline   View = "timeline"
	ViewAnalysis   View = "analysis"
)

const (
	msgProfileRequired   = "모든 항목을 입력해주세요."
	msgBirthYearInvalid  = "출생연도는 4자리 숫자로 입력해주세요."
	msgProfileExists     = "이미 프로필이 설정되어 있습니다. 초기화 후 다시 설정해주세요."
	msgProfileMissing    = "프로필을 먼저 설정해주세요."
	msgInvalidTransition = "지금은 이동할 수 없는 화면입니다."
	msgAnalysisStale     = "분석 결과가 더 이상 유효하지 않습니다."
)

// ErrStaleAnalysis 分析返回时界面已切换或已重置，结果被丢弃
var ErrStaleAnalysis = errors.New("分析结果已过期")

// AppState 界面状态快照
// Generation 在导航与重置时递增，用来丢弃过期的异步结果
type AppState struct {
	View       View                  `json:"view"`
	Analyzing  bool                  `json:"analyzing"`
	Result     *model.AnalysisResult `json:"result,omitempty"`
	Generation uint64                `json:"generation"`
}

// GraphCloser 重置时需要销毁的图视图
type GraphCloser interface {
	Close()
}

// App 应用级状态机：onboarding → timeline ⇄ analysis，reset 回到 onboarding
type App struct {
	mu        sync.Mutex
	state     AppState
	store     *RecordStore
	insight   *InsightService
	graph     GraphCloser
	publisher Publisher
}

// NewApp 创建应用状态；已有档案时直接进入时间线
func NewApp(store *RecordStore, insight *InsightService) *App {
	view := ViewOnboarding
	if store.Profile() != nil {
		view = ViewTimeline
	}
	return &App{store: store, insight: insight, state: AppState{View: view}}
}

// SetPublisher 状态变化通知
func (a *App) SetPublisher(p Publisher) {
	a.mu.Lock()
	a.publisher = p
	a.mu.Unlock()
}

// SetGraph 重置时一并销毁的图视图
func (a *App) SetGraph(g GraphCloser) {
	a.mu.Lock()
	a.graph = g
	a.mu.Unlock()
}

// State 当前状态
func (a *App) State() AppState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CompleteProfile 首次填写档案；档案只能通过重置修改
func (a *App) CompleteProfile(ctx context.Context, profile model.UserProfile) (*model.UserProfile, error) {
	profile = profile.Normalized()
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if a.store.Profile() != nil {
		return nil, apperr.Conflict(msgProfileExists, nil)
	}
	if err := a.store.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.state.View = ViewTimeline
	a.mu.Unlock()
	a.publishState()

	slog.Info("档案已创建", "birth_year", profile.BirthYear)
	return &profile, nil
}

func validateProfile(p model.UserProfile) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			if first.Field() == "BirthYear" && strings.TrimSpace(p.BirthYear) != "" {
				return apperr.Validation("birthYear", msgBirthYearInvalid)
			}
			return apperr.Validation(lowerFirst(first.Field()), msgProfileRequired)
		}
		return apperr.Validation("", msgProfileRequired)
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Analyze 发起分析；完成时若状态已被导航或重置改变，结果丢弃
func (a *App) Analyze(ctx context.Context) (*model.AnalysisResult, error) {
	a.mu.Lock()
	if a.state.View == ViewOnboarding {
		a.mu.Unlock()
		return nil, apperr.Conflict(msgProfileMissing, nil)
	}
	gen := a.state.Generation
	a.state.Analyzing = true
	a.mu.Unlock()
	a.publishState()

	result, err := a.insight.Analyze(ctx)

	a.mu.Lock()
	if a.state.Generation != gen {
		a.state.Analyzing = a.insight.InFlight(ActionAnalyze)
		a.mu.Unlock()
		slog.Info("丢弃过期的分析结果", "generation", gen)
		return nil, apperr.Conflict(msgAnalysisStale, ErrStaleAnalysis)
	}
	a.state.Analyzing = a.insight.InFlight(ActionAnalyze)
	if err == nil {
		a.state.Result = result
		a.state.View = ViewAnalysis
	}
	a.mu.Unlock()
	a.publishState()

	return result, err
}

// ShowAnalysis 回到上一次的分析结果
func (a *App) ShowAnalysis() error {
	a.mu.Lock()
	if a.state.View != ViewTimeline || a.state.Result == nil {
		a.mu.Unlock()
		return apperr.Conflict(msgInvalidTransition, nil)
	}
	a.state.View = ViewAnalysis
	a.mu.Unlock()
	a.publishState()
	return nil
}

// Back 从分析页返回时间线
func (a *App) Back() error {
	a.mu.Lock()
	if a.state.View != ViewAnalysis {
		a.mu.Unlock()
		return apperr.Conflict(msgInvalidTransition, nil)
	}
	a.state.View = ViewTimeline
	a.state.Generation++
	a.mu.Unlock()
	a.publishState()
	return nil
}

// NavigateTimeline 任意页面回到时间线（需已有档案）
func (a *App) NavigateTimeline() error {
	if a.store.Profile() == nil {
		return apperr.Conflict(msgProfileMissing, nil)
	}
	a.mu.Lock()
	if a.state.View != ViewTimeline {
		a.state.Generation++
	}
	a.state.View = ViewTimeline
	a.mu.Unlock()
	a.publishState()
	return nil
}

// Reset 清空全部数据并回到 onboarding；调用方负责二次确认
func (a *App) Reset(ctx context.Context) error {
	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	graph := a.graph
	a.state = AppState{View: ViewOnboarding, Generation: a.state.Generation + 1}
	a.mu.Unlock()

	if graph != nil {
		graph.Close()
	}
	a.publishState()
	return nil
}

func (a *App) publishState() {
	a.mu.Lock()
	pub := a.publisher
	st := a.state
	a.mu.Unlock()
	if pub == nil {
		return
	}
	pub.Publish(eventbus.NewEvent(eventbus.TypeStateChanged, map[string]any{
		"view":       string(st.View),
		"analyzing":  st.Analyzing,
		"hasResult":  st.Result != nil,
		"generation": st.Generation,
	}))
}
