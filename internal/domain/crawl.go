package domain

import "time"

// CrawlState is the lifecycle position of the remote crawl
type CrawlState string

const (
	CrawlIdle          CrawlState = "idle"
	CrawlRunning       CrawlState = "running"
	CrawlStopRequested CrawlState = "stop_requested"
	CrawlStopped       CrawlState = "stopped"
)

// CanStart reports whether a start command is meaningful from s
func (s CrawlState) CanStart() bool {
	return s == CrawlIdle || s == CrawlStopped
}

// CrawlStatus is the externally visible crawl control state
type CrawlStatus struct {
	State          CrawlState `json:"state"`
	StopEnabled    bool       `json:"stop_enabled"`
	StopInProgress bool       `json:"stop_in_progress"`
}

// Notification is a short-lived status message
type Notification struct {
	ID        uint64    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
