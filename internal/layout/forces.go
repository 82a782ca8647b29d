package layout

import "math"

// FilterLinks 去掉端点不在节点集合中的边
func FilterLinks(nodes []NodeInput, links []Link) []Link {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	out := make([]Link, 0, len(links))
	for _, l := range links {
		if _, ok := ids[l.SourceID]; !ok {
			continue
		}
		if _, ok := ids[l.TargetID]; !ok {
			continue
		}
		out = append(out, l)
	}
	return out
}

// InitialPlacement 以视口中心为原点的叶序螺旋布点
func InitialPlacement(inputs []NodeInput, p Params) []Node {
	initialAngle := math.Pi * (3 - math.Sqrt(5))
	cx, cy := p.Width/2, p.Height/2
	nodes := make([]Node, len(inputs))
	for i, in := range inputs {
		radius := p.InitialRadius * math.Sqrt(0.5+float64(i))
		angle := float64(i) * initialAngle
		nodes[i] = Node{
			ID:       in.ID,
			Title:    in.Title,
			Category: in.Category,
			X:        cx + radius*math.Cos(angle),
			Y:        cy + radius*math.Sin(angle),
		}
	}
	return nodes
}

// Step 执行一次迭代：依次施加各力后积分，返回新的节点切片（输入不被修改）
// jiggle 用于打破完全重合，返回接近 0 的小扰动
func Step(nodes []Node, links []Link, p Params, alpha float64, jiggle func() float64) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	if len(out) == 0 {
		return out
	}

	index := make(map[string]int, len(out))
	for i, n := range out {
		index[n.ID] = i
	}

	applyLinks(out, index, links, p, alpha, jiggle)
	applyManyBody(out, p, alpha, jiggle)
	applyCenter(out, p)
	applyCollide(out, p, jiggle)
	integrate(out, p)
	return out
}

type resolvedLink struct {
	s, t     int
	strength float64
	bias     float64
}

func resolveLinks(index map[string]int, links []Link, n int) []resolvedLink {
	count := make([]int, n)
	resolved := make([]resolvedLink, 0, len(links))
	for _, l := range links {
		s, okS := index[l.SourceID]
		t, okT := index[l.TargetID]
		if !okS || !okT {
			continue
		}
		count[s]++
		count[t]++
		resolved = append(resolved, resolvedLink{s: s, t: t})
	}
	for i := range resolved {
		cs, ct := float64(count[resolved[i].s]), float64(count[resolved[i].t])
		resolved[i].bias = cs / (cs + ct)
		resolved[i].strength = 1 / math.Min(cs, ct)
	}
	return resolved
}

// applyLinks 弹簧力：把边长拉向 LinkDistance，按度数分配位移
func applyLinks(nodes []Node, index map[string]int, links []Link, p Params, alpha float64, jiggle func() float64) {
	resolved := resolveLinks(index, links, len(nodes))
	iterations := p.LinkIterations
	if iterations <= 0 {
		iterations = 1
	}
	for k := 0; k < iterations; k++ {
		for _, l := range resolved {
			src, tgt := &nodes[l.s], &nodes[l.t]
			x := tgt.X + tgt.VX - src.X - src.VX
			if x == 0 {
				x = jiggle()
			}
			y := tgt.Y + tgt.VY - src.Y - src.VY
			if y == 0 {
				y = jiggle()
			}
			dist := math.Sqrt(x*x + y*y)
			if dist == 0 {
				continue
			}
			f := (dist - p.LinkDistance) / dist * alpha * l.strength
			x *= f
			y *= f
			tgt.VX -= x * l.bias
			tgt.VY -= y * l.bias
			src.VX += x * (1 - l.bias)
			src.VY += y * (1 - l.bias)
		}
	}
}

// applyManyBody 两两斥力（精确 n² 计算）
func applyManyBody(nodes []Node, p Params, alpha float64, jiggle func() float64) {
	dMin2 := p.ChargeDistanceMin * p.ChargeDistanceMin
	dMax2 := p.ChargeDistanceMax * p.ChargeDistanceMax
	for i := range nodes {
		node := &nodes[i]
		for j := range nodes {
			if i == j {
				continue
			}
			x := nodes[j].X - node.X
			y := nodes[j].Y - node.Y
			l := x*x + y*y
			if l >= dMax2 {
				continue
			}
			if x == 0 {
				x = jiggle()
				l += x * x
			}
			if y == 0 {
				y = jiggle()
				l += y * y
			}
			if l < dMin2 {
				l = math.Sqrt(dMin2 * l)
			}
			if l == 0 {
				continue
			}
			w := p.ChargeStrength * alpha / l
			node.VX += x * w
			node.VY += y * w
		}
	}
}

// applyCenter 整体平移，使质心落在视口中心
func applyCenter(nodes []Node, p Params) {
	var sx, sy float64
	for _, n := range nodes {
		sx += n.X
		sy += n.Y
	}
	strength := p.CenterStrength
	if strength == 0 {
		strength = 1
	}
	sx = (sx/float64(len(nodes)) - p.Width/2) * strength
	sy = (sy/float64(len(nodes)) - p.Height/2) * strength
	for i := range nodes {
		nodes[i].X -= sx
		nodes[i].Y -= sy
	}
}

// applyCollide 以预测位置检测重叠，半径相同按 1:1 分离
func applyCollide(nodes []Node, p Params, jiggle func() float64) {
	if p.CollideRadius <= 0 {
		return
	}
	iterations := p.CollideIterations
	if iterations <= 0 {
		iterations = 1
	}
	ri := p.CollideRadius
	ri2 := ri * ri
	for k := 0; k < iterations; k++ {
		for i := range nodes {
			node := &nodes[i]
			xi := node.X + node.VX
			yi := node.Y + node.VY
			for j := i + 1; j < len(nodes); j++ {
				other := &nodes[j]
				rj := p.CollideRadius
				r := ri + rj
				x := xi - other.X - other.VX
				y := yi - other.Y - other.VY
				l := x*x + y*y
				if l >= r*r {
					continue
				}
				if x == 0 {
					x = jiggle()
					l += x * x
				}
				if y == 0 {
					y = jiggle()
					l += y * y
				}
				l = math.Sqrt(l)
				if l == 0 {
					continue
				}
				f := (r - l) / l * p.CollideStrength
				x *= f
				y *= f
				rj2 := rj * rj
				share := rj2 / (ri2 + rj2)
				node.VX += x * share
				node.VY += y * share
				other.VX -= x * (1 - share)
				other.VY -= y * (1 - share)
			}
		}
	}
}

// integrate 速度衰减后更新位置；固定节点直接放到固定点
func integrate(nodes []Node, p Params) {
	keep := 1 - p.VelocityDecay
	for i := range nodes {
		n := &nodes[i]
		if n.FX != nil {
			n.X = *n.FX
			n.VX = 0
		} else {
			n.VX *= keep
			n.X += n.VX
		}
		if n.FY != nil {
			n.Y = *n.FY
			n.VY = 0
		} else {
			n.VY *= keep
			n.Y += n.VY
		}
	}
}
