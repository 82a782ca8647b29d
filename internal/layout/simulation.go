package layout

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Option 模拟选项
type Option func(*Simulation)

// WithOnTick 每一帧的回调（在驱动 goroutine 中调用，不能在回调里 Stop）
func WithOnTick(fn func(Frame)) Option {
	return func(s *Simulation) { s.onTick = fn }
}

// WithSeed 固定扰动随机源
func WithSeed(seed uint64) Option {
	return func(s *Simulation) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// Simulation 一次图视图对应的布局模拟
type Simulation struct {
	mu          sync.Mutex
	params      Params
	nodes       []Node
	links       []Link
	index       map[string]int
	alpha       float64
	alphaTarget float64
	state       State
	tick        int
	dragging    map[string]struct{}
	rng         *rand.Rand
	onTick      func(Frame)

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
}

// New 创建模拟；悬空边在进入模拟前丢弃
func New(inputs []NodeInput, links []Link, p Params, opts ...Option) *Simulation {
	nodes := InitialPlacement(inputs, p)
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}
	s := &Simulation{
		params:   p,
		nodes:    nodes,
		links:    FilterLinks(inputs, links),
		index:    index,
		alpha:    1,
		state:    StateCold,
		dragging: make(map[string]struct{}),
		rng:      rand.New(rand.NewPCG(1, 2)),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

// State 当前状态
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Alpha 当前热度
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// Links 实际参与模拟的边
func (s *Simulation) Links() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Link{}, s.links...)
}

// Nodes 节点状态快照
func (s *Simulation) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Node{}, s.nodes...)
}

// Frame 当前帧
func (s *Simulation) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

// Tick 手动推进一步；冷启动时自动进入 running，已稳定时不做任何事
func (s *Simulation) Tick() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateTornDown:
		return Frame{}, ErrTornDown
	case StateSettled:
		return s.frameLocked(), nil
	case StateCold:
		s.state = StateRunning
	}
	s.stepLocked()
	return s.frameLocked(), nil
}

func (s *Simulation) stepLocked() {
	s.alpha += (s.alphaTarget - s.alpha) * s.params.AlphaDecay
	s.nodes = Step(s.nodes, s.links, s.params, s.alpha, s.jiggle)
	s.tick++
	if s.alpha < s.params.AlphaMin {
		s.state = StateSettled
	}
}

// RunUntilSettled 同步推进直到稳定或达到 maxTicks
func (s *Simulation) RunUntilSettled(maxTicks int) (Frame, error) {
	var frame Frame
	for i := 0; i < maxTicks; i++ {
		f, err := s.Tick()
		if err != nil {
			return Frame{}, err
		}
		frame = f
		if s.State() == StateSettled {
			break
		}
	}
	return frame, nil
}

// Start 启动驱动循环，按 TickInterval 推进并回调 onTick
// ctx 取消等同于 Stop
func (s *Simulation) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateTornDown {
		s.mu.Unlock()
		return ErrTornDown
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateCold {
		s.state = StateRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(loopCtx, done)
	return nil
}

func (s *Simulation) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.markTornDown()

	interval := s.params.TickInterval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.State() == StateSettled {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := s.Tick()
			if err != nil {
				return
			}
			if s.onTick != nil {
				s.onTick(frame)
			}
		}
	}
}

func (s *Simulation) markTornDown() {
	s.mu.Lock()
	s.state = StateTornDown
	s.mu.Unlock()
}

// Stop 销毁模拟并等待驱动循环退出；任何状态下都可以调用，重复调用无害
func (s *Simulation) Stop() {
	s.mu.Lock()
	if s.state == StateTornDown && !s.started {
		s.mu.Unlock()
		return
	}
	s.state = StateTornDown
	cancel, done := s.cancel, s.done
	s.started = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Reheat 提高热度并恢复运行
func (s *Simulation) Reheat(alpha float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTornDown {
		return ErrTornDown
	}
	s.alpha = math.Max(s.alpha, alpha)
	s.restartLocked()
	return nil
}

func (s *Simulation) restartLocked() {
	if s.state == StateSettled || s.state == StateCold {
		s.state = StateRunning
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// DragStart 开始拖拽：固定在当前位置并升温
func (s *Simulation) DragStart(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	s.dragging[id] = struct{}{}
	s.alphaTarget = s.params.DragAlphaTarget
	x, y := s.nodes[i].X, s.nodes[i].Y
	s.nodes[i].FX, s.nodes[i].FY = &x, &y
	s.restartLocked()
	return nil
}

// DragMove 把节点固定到指针位置
func (s *Simulation) DragMove(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if _, ok := s.dragging[id]; !ok {
		s.dragging[id] = struct{}{}
		s.alphaTarget = s.params.DragAlphaTarget
	}
	s.nodes[i].FX, s.nodes[i].FY = &x, &y
	s.restartLocked()
	return nil
}

// DragEnd 松手：解除固定，短暂升温让邻居重新稳定
func (s *Simulation) DragEnd(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	delete(s.dragging, id)
	s.nodes[i].FX, s.nodes[i].FY = nil, nil
	if len(s.dragging) == 0 {
		s.alphaTarget = 0
	}
	s.alpha = math.Max(s.alpha, s.params.DragAlphaTarget)
	s.restartLocked()
	return nil
}

func (s *Simulation) lookupLocked(id string) (int, error) {
	if s.state == StateTornDown {
		return 0, ErrTornDown
	}
	i, ok := s.index[id]
	if !ok {
		return 0, ErrUnknownNode
	}
	return i, nil
}

func (s *Simulation) frameLocked() Frame {
	f := Frame{
		Tick:  s.tick,
		Alpha: s.alpha,
		State: s.state.String(),
		Nodes: make([]NodeFrame, 0, len(s.nodes)),
		Edges: make([]EdgeFrame, 0, len(s.links)),
	}
	for _, n := range s.nodes {
		f.Nodes = append(f.Nodes, NodeFrame{
			ID: n.ID, Title: n.Title, Category: n.Category,
			X: n.X, Y: n.Y, Pinned: n.Pinned(),
		})
	}
	for _, l := range s.links {
		src, tgt := s.nodes[s.index[l.SourceID]], s.nodes[s.index[l.TargetID]]
		f.Edges = append(f.Edges, EdgeFrame{
			SourceID: l.SourceID, TargetID: l.TargetID, Reason: l.Reason,
			X1: src.X, Y1: src.Y, X2: tgt.X, Y2: tgt.Y,
		})
	}
	return f
}
