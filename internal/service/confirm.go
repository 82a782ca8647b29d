package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// 需要二次确认的操作
const (
	ActionPurge = "purge"
	ActionReset = "reset"
)

// PendingAction 已发起、等待确认的破坏性操作
type PendingAction struct {
	Token   string    `json:"token"`
	Action  string    `json:"action"`
	Target  string    `json:"target,omitempty"`
	ArmedAt time.Time `json:"armedAt"`
}

// ConfirmGate 两阶段确认：Arm 得到令牌，Confirm 消费令牌，Cancel 放弃
// 令牌不会超时；同一操作与目标重新 Arm 时旧令牌作废
type ConfirmGate struct {
	mu      sync.Mutex
	pending map[string]PendingAction
	now     func() time.Time
	newID   func() string
}

// NewConfirmGate 创建确认门
func NewConfirmGate() *ConfirmGate {
	return &ConfirmGate{
		pending: make(map[string]PendingAction),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Arm 登记一个待确认操作
func (g *ConfirmGate) Arm(action, target string) PendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	for token, old := range g.pending {
		if old.Action == action && old.Target == target {
			delete(g.pending, token)
		}
	}

	p := PendingAction{Token: g.newID(), Action: action, Target: target, ArmedAt: g.now()}
	g.pending[p.Token] = p
	return p
}

// Confirm 令牌有效且操作匹配时返回并移除
func (g *ConfirmGate) Confirm(token, action string) (PendingAction, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pending[token]
	if !ok || p.Action != action {
		return PendingAction{}, false
	}
	delete(g.pending, token)
	return p, true
}

// Cancel 取消待确认操作
func (g *ConfirmGate) Cancel(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[token]
	delete(g.pending, token)
	return ok
}
