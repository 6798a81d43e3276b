package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"crawlscope/internal/domain"
)

// ErrCrawlActive is returned when a start is requested while a crawl is running or stopping
var ErrCrawlActive = errors.New("crawl already active")

const (
	msgCrawlStarted = "Crawl started"
	msgStopStarted  = "Stop process started"
	msgStopEnded    = "Stop process ended"
)

// CommandSender delivers commands to the crawler
type CommandSender interface {
	Send(ctx context.Context, cmd domain.Command) error
}

// StartRequest seeds a crawl run
type StartRequest struct {
	Domain       string `json:"domain" validate:"required,max=2048"`
	DomainsOnly  bool   `json:"domainsOnly"`
	IgnoreRobots bool   `json:"ignoreRobots"`
}

// CrawlControl tracks the crawl lifecycle
// (Idle -> Running -> StopRequested -> Stopped -> Idle) and guards
// against duplicate stop requests. The stop_start/stop_end stream events
// are authoritative; local state follows them.
type CrawlControl struct {
	sender        CommandSender
	notifications *NotificationCenter
	eventBus      *EventBus
	logger        *zap.Logger

	mu             sync.Mutex
	state          domain.CrawlState
	stopEnabled    bool
	stopInProgress bool
}

// NewCrawlControl creates a controller in the Idle state
func NewCrawlControl(sender CommandSender, notifications *NotificationCenter, eventBus *EventBus, logger *zap.Logger) *CrawlControl {
	return &CrawlControl{
		sender:        sender,
		notifications: notifications,
		eventBus:      eventBus,
		logger:        logger,
		state:         domain.CrawlIdle,
		stopEnabled:   true,
	}
}

// Start sends a start command. Only valid from Idle or Stopped. The lock
// is held across the send so concurrent starts cannot both go out.
func (c *CrawlControl) Start(ctx context.Context, req StartRequest) error {
	c.mu.Lock()
	if !c.state.CanStart() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrCrawlActive, state)
	}

	cmd := domain.NewStartCommand(req.Domain, domain.StartParams{
		DomainsOnly:  req.DomainsOnly,
		IgnoreRobots: req.IgnoreRobots,
	})
	if err := c.sender.Send(ctx, cmd); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("send start command: %w", err)
	}

	c.state = domain.CrawlRunning
	c.stopEnabled = true
	c.stopInProgress = false
	status := c.statusLocked()
	c.mu.Unlock()

	c.logger.Info("Crawl started", zap.String("domain", req.Domain),
		zap.Bool("domains_only", req.DomainsOnly), zap.Bool("ignore_robots", req.IgnoreRobots))
	c.publish(status)
	c.notifications.Post(msgCrawlStarted)
	return nil
}

// Stop requests the crawler to stop. It is a no-op returning false while a
// stop is already in flight, and when no crawl is running: the crawler
// never confirms a stop it has nothing to stop for.
func (c *CrawlControl) Stop(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.stopInProgress {
		c.mu.Unlock()
		c.logger.Debug("Stop already in progress, ignoring")
		return false, nil
	}
	if c.state.CanStart() {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("No crawl running, ignoring stop", zap.String("state", string(state)))
		return false, nil
	}
	prevState := c.state
	c.stopInProgress = true
	c.state = domain.CrawlStopRequested
	c.mu.Unlock()

	if err := c.sender.Send(ctx, domain.NewStopCommand()); err != nil {
		c.mu.Lock()
		c.stopInProgress = false
		c.state = prevState
		c.mu.Unlock()
		return false, fmt.Errorf("send stop command: %w", err)
	}

	c.logger.Info("Stop requested", zap.String("from_state", string(prevState)))
	c.publish(c.Status())
	return true, nil
}

// StopStarted applies the crawler's confirmation that stopping began
func (c *CrawlControl) StopStarted() {
	c.mu.Lock()
	c.stopEnabled = false
	if c.state != domain.CrawlStopRequested {
		c.state = domain.CrawlStopRequested
	}
	status := c.statusLocked()
	c.mu.Unlock()

	c.publish(status)
	c.notifications.Post(msgStopStarted)
}

// StopEnded applies the crawler's confirmation that the run finished stopping
func (c *CrawlControl) StopEnded() {
	c.mu.Lock()
	c.stopEnabled = true
	c.stopInProgress = false
	c.state = domain.CrawlStopped
	status := c.statusLocked()
	c.mu.Unlock()

	c.publish(status)
	c.notifications.Post(msgStopEnded)
}

// Reset returns a stopped crawl to Idle
func (c *CrawlControl) Reset() {
	c.mu.Lock()
	if c.state != domain.CrawlStopped {
		c.mu.Unlock()
		return
	}
	c.state = domain.CrawlIdle
	status := c.statusLocked()
	c.mu.Unlock()

	c.publish(status)
}

// StreamLost forgets an active crawl when the stream drops. A crawler on a
// fresh connection is not running anything, so no stop_end would follow.
func (c *CrawlControl) StreamLost() {
	c.mu.Lock()
	if c.state.CanStart() {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = domain.CrawlIdle
	c.stopEnabled = true
	c.stopInProgress = false
	status := c.statusLocked()
	c.mu.Unlock()

	c.logger.Warn("Crawler stream lost, crawl state reset", zap.String("from_state", string(prev)))
	c.publish(status)
}

// Status returns the current control state
func (c *CrawlControl) Status() domain.CrawlStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *CrawlControl) statusLocked() domain.CrawlStatus {
	return domain.CrawlStatus{
		State:          c.state,
		StopEnabled:    c.stopEnabled,
		StopInProgress: c.stopInProgress,
	}
}

func (c *CrawlControl) publish(status domain.CrawlStatus) {
	c.eventBus.Publish(Event{Type: EventCrawlStateChanged, Payload: status})
}
