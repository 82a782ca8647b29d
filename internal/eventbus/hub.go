package eventbus

import (
	"context"
	"sync"
	"time"
)

// 事件类型
const (
	TypeProfileChanged     = "profile.changed"
	TypeExperiencesChanged = "experiences.changed"
	TypeStateChanged       = "state.changed"
	TypeImportFinished     = "import.finished"
	TypeImportFailed       = "import.failed"
	TypeGraphTick          = "graph.tick"
	TypeGraphSettled       = "graph.settled"
	TypeGraphStopped       = "graph.stopped"
)

type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent 构造事件
func NewEvent(typ string, data map[string]any) Event {
	return Event{Type: typ, Timestamp: time.Now().UnixMilli(), Data: data}
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
