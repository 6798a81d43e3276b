package service

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"crawlscope/internal/clock"
	"crawlscope/internal/domain"
)

// DefaultNotificationTTL is how long a notification stays listed
const DefaultNotificationTTL = 3 * time.Second

// NotificationCenter keeps short-lived status messages. Every notification
// expires a fixed TTL after it was posted; expiry is never renewed or
// cancelled.
type NotificationCenter struct {
	clock    clock.Clock
	ttl      time.Duration
	eventBus *EventBus
	logger   *zap.Logger
	onCount  func(int)

	mu     sync.Mutex
	nextID uint64
	items  []domain.Notification
}

// NewNotificationCenter creates a notification center
func NewNotificationCenter(clk clock.Clock, ttl time.Duration, eventBus *EventBus, logger *zap.Logger) *NotificationCenter {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationCenter{
		clock:    clk,
		ttl:      ttl,
		eventBus: eventBus,
		logger:   logger,
		onCount:  func(int) {},
	}
}

// OnCountChange registers a callback observing the number of live notifications
func (n *NotificationCenter) OnCountChange(fn func(int)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onCount = fn
}

// Post records message and schedules its removal
func (n *NotificationCenter) Post(message string) uint64 {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	note := domain.Notification{
		ID:        id,
		Message:   message,
		CreatedAt: n.clock.Now(),
	}
	n.items = append(n.items, note)
	n.onCount(len(n.items))
	n.mu.Unlock()

	n.logger.Debug("Notification posted", zap.Uint64("id", id), zap.String("message", message))
	n.eventBus.Publish(Event{Type: EventNotificationPosted, Payload: note})

	n.clock.AfterFunc(n.ttl, func() { n.expire(id) })
	return id
}

// List returns live notifications in insertion order
func (n *NotificationCenter) List() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.items)
}

func (n *NotificationCenter) expire(id uint64) {
	n.mu.Lock()
	before := len(n.items)
	n.items = slices.DeleteFunc(n.items, func(note domain.Notification) bool { return note.ID == id })
	removed := len(n.items) != before
	n.onCount(len(n.items))
	n.mu.Unlock()

	if removed {
		n.eventBus.Publish(Event{Type: EventNotificationExpired, Payload: map[string]uint64{"id": id}})
	}
}
