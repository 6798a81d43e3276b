package service

import (
	"sync"
	"time"

	"crawlscope/internal/clock"
	"crawlscope/internal/domain"
)

// DefaultQuietPeriod is how long the queue must stay idle before a flush
const DefaultQuietPeriod = 300 * time.Millisecond

// FlushFunc receives one complete batch. It runs outside the queue lock,
// so enqueues made while it runs land in the next batch.
type FlushFunc func(batch []domain.Relationship)

// Batcher buffers relationships and flushes them once input has been
// quiet for the configured period (trailing-edge debounce). Each enqueue
// cancels the pending timer and starts a new one.
type Batcher struct {
	clock  clock.Clock
	quiet  time.Duration
	flush  FlushFunc
	onSize func(int)

	mu     sync.Mutex
	buf    []domain.Relationship
	timer  *clock.Timer
	gen    uint64
	closed bool

	// flushMu keeps flushes strictly sequential and excludes Discard.
	// Lock order: flushMu before mu.
	flushMu sync.Mutex
}

// NewBatcher creates a batcher that hands batches to flush
func NewBatcher(clk clock.Clock, quiet time.Duration, flush FlushFunc) *Batcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Batcher{
		clock:  clk,
		quiet:  quiet,
		flush:  flush,
		onSize: func(int) {},
	}
}

// OnSizeChange registers a callback observing the buffer length
func (b *Batcher) OnSizeChange(fn func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSize = fn
}

// Enqueue appends rel and restarts the quiet-period timer
func (b *Batcher) Enqueue(rel domain.Relationship) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.buf = append(b.buf, rel)
	b.onSize(len(b.buf))

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = b.clock.AfterFunc(b.quiet, func() { b.fire(gen, false) })
}

// Flush drains the buffer immediately, bypassing the quiet period
func (b *Batcher) Flush() {
	b.fire(0, true)
}

// Pending returns the number of buffered relationships
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Discard drops the buffer and cancels the pending flush. A flush already
// handed its batch is waited out, so nothing lands after Discard returns.
func (b *Batcher) Discard() int {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.buf)
	b.reset()
	return n
}

// Stop flushes whatever is buffered and rejects further enqueues
func (b *Batcher) Stop() {
	b.Flush()
	b.mu.Lock()
	b.closed = true
	b.reset()
	b.mu.Unlock()
}

func (b *Batcher) fire(gen uint64, force bool) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	// A timer superseded by a later enqueue may still run if it fired
	// concurrently with Stop; the generation check drops it.
	if !force && gen != b.gen {
		b.mu.Unlock()
		return
	}
	batch := b.buf
	b.reset()
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.flush(batch)
}

// reset clears the buffer and timer. Caller holds mu.
func (b *Batcher) reset() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.buf = nil
	b.onSize(0)
}
