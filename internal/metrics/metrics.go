// Package metrics counts what the socket manager and the event queue
// do: sockets opened and closed, bytes moved, events the front end
// missed, and the last failure.  The bridge serves a Snapshot at
// /metrics.
//
// A nil *Collector is a valid no-op receiver, so components built
// without metrics never nil-check.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is safe for concurrent use.
type Collector struct {
	active   atomic.Int64
	opened   atomic.Int64
	failed   atomic.Int64
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
	emitted  atomic.Int64
	dropped  atomic.Int64
	errors   atomic.Int64

	started time.Time

	mu      sync.Mutex
	lastAt  time.Time
	lastMsg string
}

// New returns a Collector whose uptime starts now.
func New() *Collector {
	return &Collector{started: time.Now()}
}

// ConnectionOpened counts a socket that reached the registry.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.active.Add(1)
	c.opened.Add(1)
}

// ConnectionClosed counts a read loop that finished.
func (c *Collector) ConnectionClosed() {
	if c != nil {
		c.active.Add(-1)
	}
}

// ConnectFailed counts a connect that never reached the registry.
func (c *Collector) ConnectFailed() {
	if c != nil {
		c.failed.Add(1)
	}
}

// BytesReceived adds n bytes read from an IRC server.
func (c *Collector) BytesReceived(n int64) {
	if c != nil {
		c.bytesIn.Add(n)
	}
}

// BytesSent adds n bytes flushed to an IRC server.
func (c *Collector) BytesSent(n int64) {
	if c != nil {
		c.bytesOut.Add(n)
	}
}

// EventEmitted counts a payload accepted by the event queue.
func (c *Collector) EventEmitted() {
	if c != nil {
		c.emitted.Add(1)
	}
}

// EventDropped counts a payload evicted because the consumer lagged.
func (c *Collector) EventDropped() {
	if c != nil {
		c.dropped.Add(1)
	}
}

// RecordError counts a failure and keeps its message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errors.Add(1)
	c.mu.Lock()
	c.lastAt = time.Now()
	c.lastMsg = msg
	c.mu.Unlock()
}

// Snapshot is the /metrics document.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	ConnectFailures   int64  `json:"connect_failures"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	EventsEmitted     int64  `json:"events_emitted"`
	EventsDropped     int64  `json:"events_dropped"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot reads every counter.  A nil Collector yields the zero value.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Uptime:            time.Since(c.started).Truncate(time.Second).String(),
		ConnectionsActive: c.active.Load(),
		ConnectionsTotal:  c.opened.Load(),
		ConnectFailures:   c.failed.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		EventsEmitted:     c.emitted.Load(),
		EventsDropped:     c.dropped.Load(),
		ErrorsTotal:       c.errors.Load(),
	}
	c.mu.Lock()
	if !c.lastAt.IsZero() {
		s.LastError = c.lastAt.Format(time.RFC3339)
		s.LastErrorMessage = c.lastMsg
	}
	c.mu.Unlock()
	return s
}
