package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crawlscope/internal/clock"
	"crawlscope/internal/domain"
	"crawlscope/internal/metrics"
	"crawlscope/internal/service"
)

// fakeConn delivers queued frames, then blocks until closed.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []interface{}
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)), closed: make(chan struct{})}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.written...)
}

// scriptedDialer returns the queued results in order, then fails.
type scriptedDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

type dialResult struct {
	conn Conn
	err  error
}

func (d *scriptedDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r.conn, r.err
}

func (d *scriptedDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func testConfig() SupervisorConfig {
	return SupervisorConfig{
		URL:              "ws://crawler.test",
		InitialInterval:  time.Millisecond,
		MaxInterval:      5 * time.Millisecond,
		Multiplier:       2,
		BreakerThreshold: 100,
		BreakerTimeout:   time.Second,
	}
}

type frameSink struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameSink) handle(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, string(data))
}

func (f *frameSink) get() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func TestSupervisorReconnectsAndReattaches(t *testing.T) {
	first := newFakeConn(`{"message_type":"new_link","child_link":"https://a/"}`)
	second := newFakeConn(`{"message_type":"new_link","child_link":"https://b/"}`)
	dialer := &scriptedDialer{results: []dialResult{
		{conn: first},
		{err: errors.New("refused")},
		{conn: second},
	}}

	m := metrics.New("test")
	sup := NewSupervisor(testConfig(), dialer, service.NewEventBus(zap.NewNop()), m, zap.NewNop())
	sink := &frameSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, sink.handle) }()

	require.Eventually(t, func() bool { return len(sink.get()) == 1 }, time.Second, time.Millisecond)
	first.Close()

	require.Eventually(t, func() bool { return len(sink.get()) == 2 }, time.Second, time.Millisecond)
	assert.True(t, strings.Contains(sink.get()[1], "https://b/"), "same handler after reconnect")
	assert.True(t, sup.Connected())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, sup.Connected())
	assert.Equal(t, 3, dialer.callCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DialFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Reconnects))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StreamUp))
}

func TestSupervisorMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 3
	dialer := &scriptedDialer{}

	sup := NewSupervisor(cfg, dialer, service.NewEventBus(zap.NewNop()), metrics.New("test"), zap.NewNop())
	err := sup.Run(context.Background(), func([]byte) {})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, dialer.callCount())
}

func TestSupervisorBreakerOpens(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 5
	cfg.BreakerThreshold = 2
	cfg.BreakerTimeout = time.Hour
	dialer := &scriptedDialer{}

	sup := NewSupervisor(cfg, dialer, service.NewEventBus(zap.NewNop()), metrics.New("test"), zap.NewNop())
	err := sup.Run(context.Background(), func([]byte) {})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 2, dialer.callCount(), "open breaker short-circuits further dials")
	assert.Equal(t, "open", sup.BreakerState())
}

func TestSupervisorSend(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		sup := NewSupervisor(testConfig(), &scriptedDialer{}, service.NewEventBus(zap.NewNop()), metrics.New("test"), zap.NewNop())
		err := sup.Send(context.Background(), domain.NewStopCommand())
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("writes on live connection", func(t *testing.T) {
		conn := newFakeConn()
		m := metrics.New("test")
		sup := NewSupervisor(testConfig(), &scriptedDialer{results: []dialResult{{conn: conn}}},
			service.NewEventBus(zap.NewNop()), m, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = sup.Run(ctx, func([]byte) {}) }()
		require.Eventually(t, sup.Connected, time.Second, time.Millisecond)

		cmd := domain.NewStartCommand("https://example.com", domain.StartParams{IgnoreRobots: true})
		require.NoError(t, sup.Send(ctx, cmd))
		require.NoError(t, sup.Send(ctx, domain.NewStopCommand()))

		assert.Equal(t, []interface{}{cmd, domain.NewStopCommand()}, conn.writes())
		assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsSent.WithLabelValues("start")))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsSent.WithLabelValues("stop")))
	})
}

func TestSupervisorPublishesConnectionEvents(t *testing.T) {
	conn := newFakeConn()
	bus := service.NewEventBus(zap.NewNop())
	events := make(chan service.Event, 8)
	bus.Subscribe(events)

	sup := NewSupervisor(testConfig(), &scriptedDialer{results: []dialResult{{conn: conn}}}, bus, metrics.New("test"), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, func([]byte) {}) }()

	assert.Equal(t, service.EventStreamConnected, (<-events).Type)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, service.EventStreamDisconnected, (<-events).Type)
}

func TestSupervisorDisconnectResetsCrawl(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &scriptedDialer{results: []dialResult{{conn: first}, {conn: second}}}

	bus := service.NewEventBus(zap.NewNop())
	sup := NewSupervisor(testConfig(), dialer, bus, metrics.New("test"), zap.NewNop())
	notes := service.NewNotificationCenter(clock.Real(), time.Minute, bus, zap.NewNop())
	crawl := service.NewCrawlControl(sup, notes, bus, zap.NewNop())
	sup.OnDisconnect(crawl.StreamLost)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx, func([]byte) {}) }()

	require.Eventually(t, sup.Connected, time.Second, time.Millisecond)
	require.NoError(t, crawl.Start(ctx, service.StartRequest{Domain: "https://a.com"}))
	_, err := crawl.Stop(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.CrawlStopRequested, crawl.Status().State)

	first.Close()
	require.Eventually(t, func() bool {
		return crawl.Status() == domain.CrawlStatus{State: domain.CrawlIdle, StopEnabled: true}
	}, time.Second, time.Millisecond, "no stop_end can arrive for a crawl the new connection never started")

	require.Eventually(t, sup.Connected, time.Second, time.Millisecond)
	require.NoError(t, crawl.Start(ctx, service.StartRequest{Domain: "https://b.com"}))
	require.Len(t, second.writes(), 1)
	assert.Equal(t, domain.ActionStart, second.writes()[0].(domain.Command).Action)

	cancel()
	require.NoError(t, <-done)
}

func TestWSDialerRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan domain.Command, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"stop_start"}`))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd domain.Command
		if json.Unmarshal(data, &cmd) == nil {
			received <- cmd
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	sup := NewSupervisor(cfg, NewWSDialer(time.Second), service.NewEventBus(zap.NewNop()), metrics.New("test"), zap.NewNop())
	sink := &frameSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx, sink.handle) }()

	require.Eventually(t, func() bool { return len(sink.get()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, `{"action":"stop_start"}`, sink.get()[0])

	require.NoError(t, sup.Send(ctx, domain.NewStopCommand()))
	select {
	case cmd := <-received:
		assert.Equal(t, domain.ActionStop, cmd.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive stop command")
	}
}

func TestWSDialerRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWSDialer(time.Second).Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
