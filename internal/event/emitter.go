package event

import (
	"sync"
	"sync/atomic"

	"ircwire/internal/metrics"
)

// DefaultQueueSize bounds a Queue created with a non-positive size.
const DefaultQueueSize = 256

// Emitter publishes payloads to whoever consumes them.  Emit must not
// block: read loops call it inline.
type Emitter interface {
	Emit(p Payload)
}

// Func adapts a function to Emitter.  The function must not block.
type Func func(p Payload)

// Emit calls f(p).
func (f Func) Emit(p Payload) { f(p) }

// Discard drops every payload.
var Discard Emitter = Func(func(Payload) {}) //nolint:gochecknoglobals

// Queue is a bounded Emitter.  When the consumer falls behind, the
// oldest queued payload is evicted to make room, so a slow front end
// loses history instead of stalling a read loop.
type Queue struct {
	mu      sync.Mutex
	ch      chan Payload
	closed  bool
	dropped atomic.Int64
	metrics *metrics.Collector
}

// NewQueue returns a Queue holding up to size payloads.  m may be nil.
func NewQueue(size int, m *metrics.Collector) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Payload, size), metrics: m}
}

// Emit enqueues p, evicting the oldest payload if the queue is full.
// After Close it is a no-op.
func (q *Queue) Emit(p Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- p:
			q.metrics.EventEmitted()
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
			q.metrics.EventDropped()
		default:
		}
	}
}

// Events is the consumer side.  It is closed by Close.
func (q *Queue) Events() <-chan Payload { return q.ch }

// Dropped returns how many payloads were evicted.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close stops accepting payloads and closes the Events channel once
// the remaining payloads are drained by the consumer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
