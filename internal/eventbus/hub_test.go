package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversAndUnsubscribes(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx, 4)
	assert.Equal(t, 1, hub.Subscribers())

	hub.Publish(Event{Type: TypeExperiencesChanged})
	select {
	case evt := <-ch:
		assert.Equal(t, TypeExperiencesChanged, evt.Type)
		assert.NotZero(t, evt.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}

func TestHubDropsForSlowConsumer(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx, 1)

	hub.Publish(NewEvent(TypeGraphTick, nil))
	hub.Publish(NewEvent(TypeGraphTick, nil))

	assert.Len(t, ch, 1)
}

func TestNilHubPublishIsSafe(t *testing.T) {
	var hub *Hub
	hub.Publish(Event{Type: "x"})
	assert.Equal(t, 0, hub.Subscribers())
}
