// Package frame defers work to the next "frame": a point after the current
// update has been observed. It stands in for a render loop's animation frame.
package frame

import (
	"sync"
	"time"
)

// Scheduler runs callbacks on a later frame.
type Scheduler interface {
	// Schedule queues fn. The caller must not hold locks fn needs.
	Schedule(fn func())
}

// Immediate runs every callback synchronously inside Schedule.
type Immediate struct{}

// Schedule implements Scheduler.
func (Immediate) Schedule(fn func()) { fn() }

// Queued holds callbacks until Flush is called.
type Queued struct {
	mu      sync.Mutex
	pending []func()
}

// NewQueued creates an empty queue.
func NewQueued() *Queued {
	return &Queued{}
}

// Schedule implements Scheduler.
func (q *Queued) Schedule(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Flush runs the callbacks queued so far, in order, and returns how many ran.
// Callbacks scheduled during Flush run on the next Flush.
func (q *Queued) Flush() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Pending returns the number of queued callbacks.
func (q *Queued) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DefaultInterval is roughly one display frame.
const DefaultInterval = 16 * time.Millisecond

// Ticker flushes a queue on a fixed interval from its own goroutine.
type Ticker struct {
	queue    *Queued
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTicker starts a Ticker. Call Stop to release its goroutine.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Ticker{
		queue:    NewQueued(),
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

// Schedule implements Scheduler.
func (t *Ticker) Schedule(fn func()) {
	t.queue.Schedule(fn)
}

func (t *Ticker) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.queue.Flush()
		case <-t.stop:
			// Run what is left so no caller waits on a frame that never comes.
			t.queue.Flush()
			return
		}
	}
}

// Stop flushes pending callbacks and stops the goroutine. Safe to call twice.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
		<-t.done
	})
}
