package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"crawlscope/internal/domain"
	"crawlscope/internal/metrics"
	"crawlscope/internal/service"
)

var (
	// ErrNotConnected is returned by Send while no stream connection is open
	ErrNotConnected = errors.New("crawler stream not connected")
	// ErrRetriesExhausted is returned by Run once MaxAttempts consecutive dials failed
	ErrRetriesExhausted = errors.New("crawler stream reconnect attempts exhausted")
)

// Conn is one open stream connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens stream connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials the crawler over WebSocket
type WSDialer struct {
	dialer *websocket.Dialer
}

// NewWSDialer creates a WebSocket dialer with the given handshake timeout
func NewWSDialer(handshakeTimeout time.Duration) *WSDialer {
	return &WSDialer{dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}}
}

// Dial opens a WebSocket connection to url
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// FrameHandler receives every inbound frame
type FrameHandler func(data []byte)

// SupervisorConfig tunes reconnects and outbound pacing
type SupervisorConfig struct {
	URL string

	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	// MaxAttempts bounds consecutive failed dials; 0 retries forever.
	MaxAttempts uint

	BreakerThreshold uint32
	BreakerTimeout   time.Duration

	CommandRate  float64
	CommandBurst int
}

// Supervisor owns the single crawler stream connection. It feeds inbound
// frames to a handler, reconnects after transport errors and carries
// outbound commands.
type Supervisor struct {
	cfg      SupervisorConfig
	dialer   Dialer
	eventBus *service.EventBus
	metrics  *metrics.Collector
	logger   *zap.Logger

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	// mu guards conn and serialises writes on it.
	mu           sync.Mutex
	conn         Conn
	onDisconnect []func()
}

// NewSupervisor creates a supervisor. Nothing is dialled until Run.
func NewSupervisor(cfg SupervisorConfig, dialer Dialer, bus *service.EventBus, m *metrics.Collector, logger *zap.Logger) *Supervisor {
	logger = logger.Named("stream")
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.CommandBurst < 1 {
		cfg.CommandBurst = 1
	}
	limit := rate.Inf
	if cfg.CommandRate > 0 {
		limit = rate.Limit(cfg.CommandRate)
	}

	s := &Supervisor{
		cfg:      cfg,
		dialer:   dialer,
		eventBus: bus,
		metrics:  m,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, cfg.CommandBurst),
	}

	threshold := cfg.BreakerThreshold
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "crawler-dial",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if s.cfg.InitialInterval > 0 {
		b.InitialInterval = s.cfg.InitialInterval
	}
	if s.cfg.MaxInterval > 0 {
		b.MaxInterval = s.cfg.MaxInterval
	}
	if s.cfg.Multiplier >= 1 {
		b.Multiplier = s.cfg.Multiplier
	}
	b.RandomizationFactor = s.cfg.RandomizationFactor
	b.Reset()
	return b
}

// Run connects and keeps the stream connected until ctx is cancelled.
// Every frame is passed to handle. A dropped connection is redialled at
// once; failed dials back off exponentially with jitter. It returns nil on
// cancellation and ErrRetriesExhausted when MaxAttempts is reached.
func (s *Supervisor) Run(ctx context.Context, handle FrameHandler) error {
	b := s.newBackOff()
	var attempts uint

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempts++
			s.metrics.DialFailures.Inc()
			if s.cfg.MaxAttempts > 0 && attempts >= s.cfg.MaxAttempts {
				s.logger.Error("Giving up on crawler stream", zap.Uint("attempts", attempts), zap.Error(err))
				return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, err)
			}

			wait := b.NextBackOff()
			s.logger.Warn("Crawler stream dial failed",
				zap.String("url", s.cfg.URL),
				zap.Uint("attempt", attempts),
				zap.Duration("retry_in", wait),
				zap.Error(err))

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil
			}
			continue
		}

		attempts = 0
		b.Reset()
		s.attach(conn)

		err = s.readLoop(ctx, conn, handle)

		s.detach(conn)
		if ctx.Err() != nil {
			return nil
		}
		s.metrics.Reconnects.Inc()
		s.logger.Warn("Crawler stream lost, reconnecting", zap.Error(err))
	}
}

func (s *Supervisor) dial(ctx context.Context) (Conn, error) {
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.dialer.Dial(ctx, s.cfg.URL)
	})
	if err != nil {
		return nil, err
	}
	return res.(Conn), nil
}

func (s *Supervisor) readLoop(ctx context.Context, conn Conn, handle FrameHandler) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks ReadMessage.
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(data)
	}
}

func (s *Supervisor) attach(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.metrics.StreamUp.Set(1)
	s.logger.Info("Crawler stream connected", zap.String("url", s.cfg.URL))
	s.eventBus.Publish(service.Event{Type: service.EventStreamConnected, Payload: map[string]string{"url": s.cfg.URL}})
}

func (s *Supervisor) detach(conn Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()

	s.metrics.StreamUp.Set(0)
	s.eventBus.Publish(service.Event{Type: service.EventStreamDisconnected, Payload: map[string]string{"url": s.cfg.URL}})

	s.mu.Lock()
	hooks := s.onDisconnect
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// OnDisconnect registers fn to run each time a live connection is lost
func (s *Supervisor) OnDisconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

// Connected reports whether a stream connection is open
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes cmd on the live connection, waiting for the outbound rate
// limiter first.
func (s *Supervisor) Send(ctx context.Context, cmd domain.Command) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("write %s command: %w", cmd.Action, err)
	}

	s.metrics.CommandsSent.WithLabelValues(string(cmd.Action)).Inc()
	s.logger.Debug("Command sent", zap.String("action", string(cmd.Action)), zap.String("domain", cmd.Domain))
	return nil
}

// BreakerState reports the dial circuit breaker state
func (s *Supervisor) BreakerState() string {
	return s.breaker.State().String()
}
