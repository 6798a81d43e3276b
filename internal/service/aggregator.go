package service

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"crawlscope/internal/domain"
	"crawlscope/internal/metrics"
)

// LayoutSink receives the render operations of each flush. seq numbers
// flushes from 1 without gaps. Recompute is called exactly once per
// non-empty flush, after Apply.
type LayoutSink interface {
	Apply(seq uint64, ops []domain.Op)
	Recompute()
}

// GraphOps is the graph_ops event payload. A client that sees seq jump
// has missed a frame and should reload the graph.
type GraphOps struct {
	Seq uint64      `json:"seq"`
	Ops []domain.Op `json:"ops"`
}

// GraphView is a graph snapshot tagged with the last applied flush
type GraphView struct {
	Seq uint64 `json:"seq"`
	domain.Snapshot
}

// EventBusLayout forwards layout work to SSE clients through the event bus
type EventBusLayout struct {
	eventBus *EventBus
}

// NewEventBusLayout creates a layout sink publishing on bus
func NewEventBusLayout(bus *EventBus) *EventBusLayout {
	return &EventBusLayout{eventBus: bus}
}

// Apply publishes the ops of one flush
func (l *EventBusLayout) Apply(seq uint64, ops []domain.Op) {
	l.eventBus.Publish(Event{Type: EventGraphOps, Payload: GraphOps{Seq: seq, Ops: ops}})
}

// Recompute asks clients to run a layout pass
func (l *EventBusLayout) Recompute() {
	l.eventBus.Publish(Event{Type: EventLayoutRecompute})
}

// AggregatorDeps bundles the collaborators of an Aggregator
type AggregatorDeps struct {
	Crawl         *CrawlControl
	Notifications *NotificationCenter
	EventBus      *EventBus
	Layout        LayoutSink
	Metrics       *metrics.Collector
	Logger        *zap.Logger
}

// Aggregator applies routed crawler events to the message log, the branch
// index and the graph. Its mutex is the single point that serialises
// access to all three.
type Aggregator struct {
	crawl         *CrawlControl
	notifications *NotificationCenter
	eventBus      *EventBus
	layout        LayoutSink
	metrics       *metrics.Collector
	logger        *zap.Logger

	batcher *Batcher

	mu       sync.Mutex
	graph    *domain.Graph
	seq      uint64
	branches *domain.BranchIndex
	messages []string
}

// NewAggregator creates an aggregator. newBatcher receives the flush
// function so the caller controls clock and quiet period.
func NewAggregator(deps AggregatorDeps, newBatcher func(FlushFunc) *Batcher) *Aggregator {
	a := &Aggregator{
		crawl:         deps.Crawl,
		notifications: deps.Notifications,
		eventBus:      deps.EventBus,
		layout:        deps.Layout,
		metrics:       deps.Metrics,
		logger:        deps.Logger.Named("aggregator"),
		graph:         domain.NewGraph(),
		branches:      domain.NewBranchIndex(),
	}
	a.batcher = newBatcher(a.applyBatch)
	a.batcher.OnSizeChange(func(n int) { a.metrics.Pending.Set(float64(n)) })
	a.notifications.OnCountChange(func(n int) { a.metrics.Notifications.Set(float64(n)) })
	return a
}

// HandleRaw decodes one stream frame and applies it. Undecodable frames are
// logged and dropped.
func (a *Aggregator) HandleRaw(data []byte) {
	ev, err := domain.DecodeEvent(data)
	if err != nil {
		a.metrics.DecodeFailures.Inc()
		a.logger.Warn("Dropping undecodable frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	a.HandleEvent(ev)
}

// HandleEvent routes ev and applies its effects in order
func (a *Aggregator) HandleEvent(ev domain.Event) {
	typeLabel := string(ev.Type)
	if !ev.Known() {
		typeLabel = "other"
	}
	a.metrics.EventsTotal.WithLabelValues(typeLabel).Inc()

	effects, err := Route(ev)
	if err != nil {
		a.metrics.Rejected.Inc()
		a.logger.Warn("Rejected relationship",
			zap.String("parent", ev.ParentDomain),
			zap.String("child", ev.ChildDomain),
			zap.Error(err))
	}

	for _, eff := range effects {
		switch eff.Kind {
		case EffectEnqueueRelationship:
			a.batcher.Enqueue(eff.Relationship)
		case EffectStopStarted:
			a.crawl.StopStarted()
		case EffectStopEnded:
			a.crawl.StopEnded()
		case EffectLogMessage:
			a.logMessage(eff.Message)
		}
	}
}

func (a *Aggregator) logMessage(message string) {
	a.mu.Lock()
	a.messages = append(a.messages, message)
	key, err := a.branches.Index(message)
	a.mu.Unlock()

	a.metrics.MessagesIndexed.Inc()
	if err != nil {
		a.metrics.MalformedURLs.Inc()
		a.logger.Debug("Message filed under empty key", zap.String("message", message), zap.Error(err))
	}
	a.eventBus.Publish(Event{Type: EventBranchesChanged, Payload: map[string]string{"key": key}})
}

func (a *Aggregator) applyBatch(batch []domain.Relationship) {
	a.mu.Lock()
	ops := a.graph.ApplyBatch(batch)
	a.seq++
	seq := a.seq
	nodes, edges := a.graph.NodeCount(), a.graph.EdgeCount()
	a.mu.Unlock()

	a.metrics.Flushes.Inc()
	a.metrics.BatchSize.Observe(float64(len(batch)))
	a.metrics.GraphNodes.Set(float64(nodes))
	a.metrics.GraphEdges.Set(float64(edges))

	a.logger.Debug("Applied batch",
		zap.Uint64("seq", seq),
		zap.Int("relationships", len(batch)),
		zap.Int("ops", len(ops)),
		zap.Int("nodes", nodes),
		zap.Int("edges", edges))

	a.layout.Apply(seq, ops)
	a.layout.Recompute()
}

// Graph returns a snapshot of the current graph and the flush it reflects
func (a *Aggregator) Graph() GraphView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return GraphView{Seq: a.seq, Snapshot: a.graph.Snapshot()}
}

// Branches returns the filtered branch view for query
func (a *Aggregator) Branches(query string) []domain.BranchEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.branches.Filter(query)
}

// ToggleBranch flips the expanded flag of key
func (a *Aggregator) ToggleBranch(key string) (bool, error) {
	a.mu.Lock()
	expanded, err := a.branches.Toggle(key)
	a.mu.Unlock()
	if err != nil {
		return false, err
	}
	a.eventBus.Publish(Event{Type: EventBranchesChanged, Payload: map[string]string{"key": key}})
	return expanded, nil
}

// Messages returns the raw message log in arrival order
func (a *Aggregator) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.messages)
}

// Notifications returns the live notifications
func (a *Aggregator) Notifications() []domain.Notification {
	return a.notifications.List()
}

// Crawl exposes the crawl controller
func (a *Aggregator) Crawl() *CrawlControl {
	return a.crawl
}

// PendingRelationships returns how many relationships await the next flush
func (a *Aggregator) PendingRelationships() int {
	return a.batcher.Pending()
}

// Clear requests a stop, then empties the graph, branches, message log and
// pending buffer. A failed stop request is logged; the local state is
// cleared regardless. The flush sequence keeps counting across clears.
func (a *Aggregator) Clear(ctx context.Context) {
	if _, err := a.crawl.Stop(ctx); err != nil {
		a.logger.Warn("Stop request during clear failed", zap.Error(err))
	}

	dropped := a.batcher.Discard()

	a.mu.Lock()
	a.graph.Reset()
	a.branches.Reset()
	a.messages = nil
	a.mu.Unlock()

	a.crawl.Reset()
	a.metrics.GraphNodes.Set(0)
	a.metrics.GraphEdges.Set(0)

	a.logger.Info("Cleared", zap.Int("dropped_pending", dropped))
	a.eventBus.Publish(Event{Type: EventCleared})
}

// Shutdown flushes any buffered relationships and stops accepting new ones
func (a *Aggregator) Shutdown() {
	a.batcher.Stop()
}
