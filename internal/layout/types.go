// Package layout 关系图的力导向布局（link / many-body / center / collide 四种力）。
// Step 是纯函数；Simulation 负责 alpha 冷却、拖拽固定与逐帧推送。
package layout

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrTornDown 模拟已销毁
	ErrTornDown = errors.New("layout: simulation torn down")
	// ErrUnknownNode 节点不存在
	ErrUnknownNode = errors.New("layout: unknown node")
)

// NodeInput 节点输入
type NodeInput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Link 边（按 id 引用节点）
type Link struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Reason   string `json:"reason"`
}

// Node 模拟中的节点状态
type Node struct {
	ID       string
	Title    string
	Category string
	X, Y     float64
	VX, VY   float64
	// FX/FY 非 nil 时节点被固定在该位置
	FX, FY *float64
}

// Pinned 是否被固定
func (n Node) Pinned() bool {
	return n.FX != nil || n.FY != nil
}

// Params 力与冷却参数
type Params struct {
	Width  float64
	Height float64

	LinkDistance   float64
	LinkIterations int

	ChargeStrength    float64
	ChargeDistanceMin float64
	ChargeDistanceMax float64

	CenterStrength float64

	CollideRadius     float64
	CollideStrength   float64
	CollideIterations int

	VelocityDecay float64
	AlphaMin      float64
	AlphaDecay    float64
	// DragAlphaTarget 拖拽期间的 alphaTarget，同时是松手后的最低热度
	DragAlphaTarget float64

	InitialRadius float64
	TickInterval  time.Duration
}

// DefaultParams 默认参数，视口大小由调用方给出
func DefaultParams(width, height float64) Params {
	alphaMin := 0.001
	return Params{
		Width:             width,
		Height:            height,
		LinkDistance:      100,
		LinkIterations:    1,
		ChargeStrength:    -300,
		ChargeDistanceMin: 1,
		ChargeDistanceMax: math.Inf(1),
		CenterStrength:    1,
		CollideRadius:     50,
		CollideStrength:   1,
		CollideIterations: 1,
		VelocityDecay:     0.4,
		AlphaMin:          alphaMin,
		AlphaDecay:        1 - math.Pow(alphaMin, 1.0/300),
		DragAlphaTarget:   0.3,
		InitialRadius:     10,
		TickInterval:      16 * time.Millisecond,
	}
}

// State 模拟状态
type State int

const (
	StateCold State = iota
	StateRunning
	StateSettled
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateRunning:
		return "running"
	case StateSettled:
		return "settled"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// NodeFrame 一帧中的节点
type NodeFrame struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pinned   bool    `json:"pinned"`
}

// EdgeFrame 一帧中的边（端点即节点中心）
type EdgeFrame struct {
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId"`
	Reason   string  `json:"reason"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
}

// Frame 推送给展示层的一帧
type Frame struct {
	Tick  int         `json:"tick"`
	Alpha float64     `json:"alpha"`
	State string      `json:"state"`
	Nodes []NodeFrame `json:"nodes"`
	Edges []EdgeFrame `json:"edges"`
}
