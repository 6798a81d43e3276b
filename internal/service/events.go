package service

import "go.uber.org/zap"

// EventType defines the type of event
type EventType string

const (
	EventGraphOps            EventType = "graph_ops"
	EventLayoutRecompute     EventType = "layout_recompute"
	EventBranchesChanged     EventType = "branches_changed"
	EventNotificationPosted  EventType = "notification_posted"
	EventNotificationExpired EventType = "notification_expired"
	EventCrawlStateChanged   EventType = "crawl_state_changed"
	EventStreamConnected     EventType = "stream_connected"
	EventStreamDisconnected  EventType = "stream_disconnected"
	EventCleared             EventType = "cleared"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	subscribers []chan<- Event
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
		logger:      logger,
	}
}

// Subscribe adds a subscriber to receive events. Not safe to call
// concurrently with Publish; subscribe during wiring.
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.subscribers = append(eb.subscribers, ch)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
			eb.logger.Debug("Dropping event for slow subscriber", zap.String("type", string(event.Type)))
		}
	}
}
