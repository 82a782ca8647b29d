package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/layout"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

const (
	msgGraphNotShown    = "관계 지도가 표시되어 있지 않습니다."
	msgGraphUnknownNode = "해당 경험을 지도에서 찾을 수 없습니다."
	defaultSettleTicks  = 1000
)

// GraphService 关系图视图：同一时间只有一个模拟在运行，新视图替换旧视图前先销毁旧的
type GraphService struct {
	mu        sync.Mutex
	base      context.Context
	store     *RecordStore
	params    layout.Params
	publisher Publisher
	sim       *layout.Simulation
	view      uint64
}

// NewGraphService 创建服务；base 取消时正在运行的模拟随之销毁
func NewGraphService(base context.Context, store *RecordStore, params layout.Params) *GraphService {
	if base == nil {
		base = context.Background()
	}
	return &GraphService{base: base, store: store, params: params}
}

// SetPublisher 帧推送目标
func (g *GraphService) SetPublisher(p Publisher) {
	g.mu.Lock()
	g.publisher = p
	g.mu.Unlock()
}

// BuildGraph 用有效经历与分析结果中的关系构造节点和边
func BuildGraph(active []model.Experience, result *model.AnalysisResult) ([]layout.NodeInput, []layout.Link) {
	nodes := make([]layout.NodeInput, 0, len(active))
	for _, e := range active {
		nodes = append(nodes, layout.NodeInput{ID: e.ID, Title: e.Title, Category: e.Category})
	}
	var links []layout.Link
	if result != nil {
		links = make([]layout.Link, 0, len(result.Relationships))
		for _, r := range result.Relationships {
			links = append(links, layout.Link{SourceID: r.SourceID, TargetID: r.TargetID, Reason: r.Reason})
		}
	}
	return nodes, links
}

func (g *GraphService) paramsFor(width, height float64) layout.Params {
	p := g.params
	if width > 0 && height > 0 {
		p.Width, p.Height = width, height
	}
	return p
}

// Start 打开新的图视图并开始逐帧推送
func (g *GraphService) Start(result *model.AnalysisResult, width, height float64) (layout.Frame, error) {
	nodes, links := BuildGraph(ActiveExperiences(g.store.Experiences()), result)

	g.mu.Lock()
	g.view++
	view := g.view
	pub := g.publisher
	sim := layout.New(nodes, links, g.paramsFor(width, height), layout.WithOnTick(g.frameSink(view, pub)))
	old := g.sim
	g.sim = sim
	g.mu.Unlock()

	if old != nil {
		old.Stop()
		g.publishStopped(pub, view-1)
	}
	if err := sim.Start(g.base); err != nil {
		return layout.Frame{}, apperr.Conflict(msgGraphNotShown, err)
	}

	slog.Info("关系图已启动", "view", view, "nodes", len(nodes), "links", len(sim.Links()))
	return sim.Frame(), nil
}

// Layout 同步计算到稳定，不推送帧（CLI 输出用）
func (g *GraphService) Layout(result *model.AnalysisResult, width, height float64) (layout.Frame, error) {
	nodes, links := BuildGraph(ActiveExperiences(g.store.Experiences()), result)
	sim := layout.New(nodes, links, g.paramsFor(width, height))
	defer sim.Stop()
	return sim.RunUntilSettled(defaultSettleTicks)
}

func (g *GraphService) frameSink(view uint64, pub Publisher) func(layout.Frame) {
	return func(f layout.Frame) {
		if pub == nil {
			return
		}
		typ := eventbus.TypeGraphTick
		if f.State == layout.StateSettled.String() {
			typ = eventbus.TypeGraphSettled
		}
		pub.Publish(eventbus.NewEvent(typ, map[string]any{"view": view, "frame": f}))
	}
}

func (g *GraphService) publishStopped(pub Publisher, view uint64) {
	if pub != nil {
		pub.Publish(eventbus.NewEvent(eventbus.TypeGraphStopped, map[string]any{"view": view}))
	}
}

func (g *GraphService) current() (*layout.Simulation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sim == nil {
		return nil, apperr.Conflict(msgGraphNotShown, layout.ErrTornDown)
	}
	return g.sim, nil
}

func graphError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, layout.ErrUnknownNode):
		return apperr.NotFound(msgGraphUnknownNode)
	case errors.Is(err, layout.ErrTornDown):
		return apperr.Conflict(msgGraphNotShown, err)
	default:
		return err
	}
}

// Frame 当前帧
func (g *GraphService) Frame() (layout.Frame, error) {
	sim, err := g.current()
	if err != nil {
		return layout.Frame{}, err
	}
	if sim.State() == layout.StateTornDown {
		return layout.Frame{}, apperr.Conflict(msgGraphNotShown, layout.ErrTornDown)
	}
	return sim.Frame(), nil
}

// DragStart 开始拖拽节点
func (g *GraphService) DragStart(id string) error {
	sim, err := g.current()
	if err != nil {
		return err
	}
	return graphError(sim.DragStart(id))
}

// DragMove 拖动到 (x, y)
func (g *GraphService) DragMove(id string, x, y float64) error {
	sim, err := g.current()
	if err != nil {
		return err
	}
	return graphError(sim.DragMove(id, x, y))
}

// DragEnd 结束拖拽
func (g *GraphService) DragEnd(id string) error {
	sim, err := g.current()
	if err != nil {
		return err
	}
	return graphError(sim.DragEnd(id))
}

// Close 销毁当前视图；没有视图时什么都不做
func (g *GraphService) Close() {
	g.mu.Lock()
	sim := g.sim
	view := g.view
	pub := g.publisher
	g.sim = nil
	g.mu.Unlock()

	if sim == nil {
		return
	}
	sim.Stop()
	g.publishStopped(pub, view)
	slog.Info("关系图已关闭", "view", view)
}
