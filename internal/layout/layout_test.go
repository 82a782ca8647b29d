package layout

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNodes(n int) []NodeInput {
	out := make([]NodeInput, n)
	for i := range out {
		out[i] = NodeInput{ID: string(rune('a' + i)), Title: "경험", Category: "공모전"}
	}
	return out
}

func TestNewDropsDanglingLinks(t *testing.T) {
	links := []Link{
		{SourceID: "a", TargetID: "b", Reason: "같은 팀"},
		{SourceID: "a", TargetID: "zz"},
		{SourceID: "yy", TargetID: "b"},
	}
	sim := New(sampleNodes(2), links, DefaultParams(800, 600))
	require.Len(t, sim.Links(), 1)
	assert.Equal(t, "같은 팀", sim.Links()[0].Reason)

	frame := sim.Frame()
	assert.Len(t, frame.Edges, 1)
	assert.Equal(t, "cold", frame.State)
}

func TestAlphaCoolsToSettled(t *testing.T) {
	sim := New(sampleNodes(4), []Link{{SourceID: "a", TargetID: "b"}}, DefaultParams(800, 600))
	frame, err := sim.RunUntilSettled(1000)
	require.NoError(t, err)
	assert.Equal(t, StateSettled, sim.State())
	assert.Less(t, frame.Alpha, 0.001)
	// 1 - 0.001^(1/300) 的衰减约 300 步
	assert.InDelta(t, 300, frame.Tick, 2)

	before := sim.Frame()
	after, err := sim.Tick()
	require.NoError(t, err)
	assert.Equal(t, before.Tick, after.Tick)
}

func TestCenterForceKeepsCentroid(t *testing.T) {
	p := DefaultParams(800, 600)
	sim := New(sampleNodes(6), nil, p)
	_, err := sim.RunUntilSettled(1000)
	require.NoError(t, err)

	var sx, sy float64
	nodes := sim.Nodes()
	for _, n := range nodes {
		sx += n.X
		sy += n.Y
	}
	assert.InDelta(t, 400, sx/float64(len(nodes)), 5)
	assert.InDelta(t, 300, sy/float64(len(nodes)), 5)
}

func TestCollideSeparatesNodes(t *testing.T) {
	p := DefaultParams(800, 600)
	sim := New(sampleNodes(5), nil, p)
	_, err := sim.RunUntilSettled(1000)
	require.NoError(t, err)

	nodes := sim.Nodes()
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			d := math.Hypot(nodes[i].X-nodes[j].X, nodes[i].Y-nodes[j].Y)
			assert.Greater(t, d, p.CollideRadius*1.5, "%s-%s", nodes[i].ID, nodes[j].ID)
		}
	}
}

func TestLinkPullsTowardDistance(t *testing.T) {
	p := DefaultParams(800, 600)
	p.ChargeStrength = 0
	p.CollideRadius = 0
	sim := New(sampleNodes(2), []Link{{SourceID: "a", TargetID: "b"}}, p)
	_, err := sim.RunUntilSettled(1000)
	require.NoError(t, err)

	nodes := sim.Nodes()
	d := math.Hypot(nodes[0].X-nodes[1].X, nodes[0].Y-nodes[1].Y)
	assert.InDelta(t, p.LinkDistance, d, 15)
}

func TestStepDoesNotMutateInput(t *testing.T) {
	p := DefaultParams(100, 100)
	nodes := InitialPlacement(sampleNodes(3), p)
	orig := append([]Node{}, nodes...)
	_ = Step(nodes, nil, p, 1, func() float64 { return 0 })
	assert.Equal(t, orig, nodes)
}

func TestDragPinsAndReleases(t *testing.T) {
	sim := New(sampleNodes(3), nil, DefaultParams(800, 600))
	_, err := sim.RunUntilSettled(1000)
	require.NoError(t, err)

	require.NoError(t, sim.DragStart("a"))
	assert.Equal(t, StateRunning, sim.State())
	require.NoError(t, sim.DragMove("a", 10, 20))

	for i := 0; i < 50; i++ {
		_, err := sim.Tick()
		require.NoError(t, err)
	}
	nodes := sim.Nodes()
	assert.Equal(t, 10.0, nodes[0].X)
	assert.Equal(t, 20.0, nodes[0].Y)
	assert.True(t, sim.Frame().Nodes[0].Pinned)
	// 拖拽期间热度趋向 0.3，不会稳定
	assert.Equal(t, StateRunning, sim.State())

	require.NoError(t, sim.DragEnd("a"))
	assert.GreaterOrEqual(t, sim.Alpha(), 0.3)
	assert.False(t, sim.Frame().Nodes[0].Pinned)

	_, err = sim.RunUntilSettled(1000)
	require.NoError(t, err)
	assert.Equal(t, StateSettled, sim.State())
}

func TestDragUnknownNode(t *testing.T) {
	sim := New(sampleNodes(1), nil, DefaultParams(100, 100))
	assert.ErrorIs(t, sim.DragStart("nope"), ErrUnknownNode)
	assert.ErrorIs(t, sim.DragMove("nope", 1, 1), ErrUnknownNode)
	assert.ErrorIs(t, sim.DragEnd("nope"), ErrUnknownNode)
}

func TestTornDownRejectsEverything(t *testing.T) {
	sim := New(sampleNodes(2), nil, DefaultParams(100, 100))
	sim.Stop()
	sim.Stop()
	assert.Equal(t, StateTornDown, sim.State())

	_, err := sim.Tick()
	assert.ErrorIs(t, err, ErrTornDown)
	assert.ErrorIs(t, sim.DragStart("a"), ErrTornDown)
	assert.ErrorIs(t, sim.Reheat(1), ErrTornDown)
	assert.ErrorIs(t, sim.Start(context.Background()), ErrTornDown)
}

func TestStartDeliversFramesUntilSettled(t *testing.T) {
	p := DefaultParams(400, 400)
	p.TickInterval = time.Millisecond
	p.AlphaDecay = 0.2

	var frames atomic.Int32
	settled := make(chan struct{}, 1)
	sim := New(sampleNodes(3), nil, p, WithSeed(7), WithOnTick(func(f Frame) {
		frames.Add(1)
		if f.State == "settled" {
			select {
			case settled <- struct{}{}:
			default:
			}
		}
	}))

	require.NoError(t, sim.Start(context.Background()))
	require.NoError(t, sim.Start(context.Background()))

	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not settle")
	}
	assert.Greater(t, frames.Load(), int32(1))

	// 稳定后拖拽重新唤醒循环
	n := frames.Load()
	require.NoError(t, sim.Reheat(0.5))
	require.Eventually(t, func() bool { return frames.Load() > n }, 5*time.Second, time.Millisecond)

	sim.Stop()
	assert.Equal(t, StateTornDown, sim.State())
}

func TestContextCancelTearsDown(t *testing.T) {
	p := DefaultParams(400, 400)
	p.TickInterval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	sim := New(sampleNodes(2), nil, p)
	require.NoError(t, sim.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return sim.State() == StateTornDown }, 5*time.Second, time.Millisecond)
	sim.Stop()
}
