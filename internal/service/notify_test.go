package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crawlscope/internal/clock"
	"crawlscope/internal/domain"
)

func newTestNotifications(clk clock.Clock) (*NotificationCenter, chan Event) {
	bus := NewEventBus(zap.NewNop())
	events := make(chan Event, 64)
	bus.Subscribe(events)
	return NewNotificationCenter(clk, 3*time.Second, bus, zap.NewNop()), events
}

func messagesOf(notes []domain.Notification) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Message)
	}
	return out
}

func TestNotificationTTL(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	nc, _ := newTestNotifications(clk)

	nc.Post("first")
	clk.Advance(1000 * time.Millisecond)
	nc.Post("second")

	clk.Advance(1999 * time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, messagesOf(nc.List()), "first still present at 2999ms")

	clk.Advance(2 * time.Millisecond)
	assert.Equal(t, []string{"second"}, messagesOf(nc.List()), "first gone at 3001ms, second unaffected")

	clk.Advance(1000 * time.Millisecond)
	assert.Empty(t, nc.List())
}

func TestNotificationIDsIncrease(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	nc, _ := newTestNotifications(clk)

	a := nc.Post("a")
	b := nc.Post("b")
	clk.Advance(5 * time.Second)
	c := nc.Post("c")

	assert.Equal(t, uint64(0), a)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestNotificationEvents(t *testing.T) {
	clk := clock.Fake(time.Unix(100, 0))
	nc, events := newTestNotifications(clk)

	id := nc.Post("hello")

	posted := <-events
	require.Equal(t, EventNotificationPosted, posted.Type)
	note, ok := posted.Payload.(domain.Notification)
	require.True(t, ok)
	assert.Equal(t, id, note.ID)
	assert.Equal(t, "hello", note.Message)
	assert.Equal(t, time.Unix(100, 0), note.CreatedAt)

	clk.Advance(3 * time.Second)
	expired := <-events
	require.Equal(t, EventNotificationExpired, expired.Type)
	assert.Equal(t, map[string]uint64{"id": id}, expired.Payload)
}

func TestNotificationCount(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	nc, _ := newTestNotifications(clk)

	var counts []int
	nc.OnCountChange(func(n int) { counts = append(counts, n) })

	nc.Post("a")
	nc.Post("b")
	clk.Advance(3 * time.Second)
	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}
