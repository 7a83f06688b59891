// Package socket owns the live IRC connections: it registers them by
// client id, runs one read loop per connection, and frames outbound
// lines.
//
// Every inbound chunk, read failure, and connect/disconnect is
// published through an event.Emitter.  A connection that leaves the
// registry emits one final connected:false and nothing after it, so a
// client id can be reused at once.  Outbound writes are serialized per
// connection so concurrent senders never interleave bytes.
package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"ircwire/internal/address"
	wireerr "ircwire/internal/errors"
	"ircwire/internal/event"
	"ircwire/internal/metrics"
	"ircwire/internal/transport"
	"ircwire/util"
)

// DefaultGracePeriod bounds how long a disconnected socket keeps
// draining inbound bytes before it is closed.
const DefaultGracePeriod = 5 * time.Second

// Options configures a Manager.
type Options struct {
	// Establisher dials and handshakes new connections.  Nil uses a
	// plain TCP establisher with no timeouts.
	Establisher *transport.Establisher
	// Emitter receives every event.  Nil discards them.
	Emitter event.Emitter
	Metrics *metrics.Collector
	Logger  *util.Logger

	// WriteTimeout bounds each write+flush.  Zero means none.
	WriteTimeout time.Duration
	// GracePeriod is how long a disconnected socket may drain.  Zero
	// uses DefaultGracePeriod, a negative value closes immediately.
	GracePeriod time.Duration
}

// Manager is the connection table plus the operations on it.
type Manager struct {
	reg     *Registry
	est     *transport.Establisher
	emit    event.Emitter
	metrics *metrics.Collector
	logger  *util.Logger

	writeTimeout time.Duration
	grace        time.Duration

	wg sync.WaitGroup
}

// NewManager returns a Manager with an empty registry.
func NewManager(opts Options) *Manager {
	m := &Manager{
		reg:          NewRegistry(),
		est:          opts.Establisher,
		emit:         opts.Emitter,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		writeTimeout: opts.WriteTimeout,
		grace:        opts.GracePeriod,
	}
	if m.logger == nil {
		m.logger = util.NewLogger(0)
	}
	if m.est == nil {
		m.est = &transport.Establisher{}
	}
	if m.est.Logger == nil {
		m.est.Logger = m.logger
	}
	if m.emit == nil {
		m.emit = event.Discard
	}
	if m.grace == 0 {
		m.grace = DefaultGracePeriod
	}
	return m
}

// Registry exposes the connection table for introspection.
func (m *Manager) Registry() *Registry { return m.reg }

// Info describes one live connection.
type Info struct {
	ID     string `json:"id"`
	Remote string `json:"remote"`
	TLS    bool   `json:"tls"`
}

// Connections lists the live connections in id order.
func (m *Manager) Connections() []Info {
	ids := m.reg.IDs()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		e, ok := m.reg.Lookup(id)
		if !ok {
			continue
		}
		out = append(out, Info{ID: id, Remote: e.RemoteAddr(), TLS: e.Kind() == transport.KindTLS})
	}
	return out
}

// Connect opens a connection to addr and registers it under id.  An
// "ircs://" prefix selects TLS.  A connection already registered
// under id is closed and replaced; it emits no further events.
func (m *Manager) Connect(ctx context.Context, id, addr string) error {
	if id == "" {
		return &wireerr.ConfigError{Field: "id", Message: "client id is required"}
	}

	useTLS, host, port := address.Parse(addr)
	conn, err := m.est.Connect(ctx, host, port, useTLS)
	if err != nil {
		m.metrics.ConnectFailed()
		m.metrics.RecordError(err.Error())
		m.logger.Warn("%s: connect failed: %v", id, err)
		return fmt.Errorf("connect %s: %w", id, err)
	}

	e := newEntry(id, conn)
	if prev := m.reg.Register(id, e); prev != nil {
		m.logger.Verbose("%s: replacing existing connection to %s", id, prev.RemoteAddr())
		m.supersede(prev)
	}
	m.metrics.ConnectionOpened()
	m.logger.Info("%s: connected to %s (%s)", id, conn.RemoteAddr(), conn.Kind())

	m.emit.Emit(event.State(id, true))
	m.wg.Add(1)
	go m.readLoop(e)
	return nil
}

func (m *Manager) supersede(e *Entry) {
	e.state.Lock()
	e.detachLocked(reasonSuperseded)
	e.state.Unlock()
	e.conn.Close()
}

// drop ends e for reason r if it is still live: the registry forgets
// it and its final connected:false is emitted.  It reports whether e
// was live.
func (m *Manager) drop(e *Entry, r closeReason) bool {
	e.state.Lock()
	defer e.state.Unlock()
	if !e.detachLocked(r) {
		return false
	}
	m.reg.RemoveEntry(e.id, e)
	m.emit.Emit(event.State(e.id, false))
	return true
}

// Frame terminates data with CRLF unless it already ends with one.
func Frame(data string) []byte {
	if strings.HasSuffix(data, "\r\n") {
		return []byte(data)
	}
	return []byte(data + "\r\n")
}

// Send writes one framed line to the connection registered under id
// and flushes it.  A write or flush failure tears the connection down.
func (m *Manager) Send(id, data string) error {
	e, ok := m.reg.Lookup(id)
	if !ok {
		return wireerr.NotFound(id)
	}
	line := Frame(data)

	err := m.write(e, line)
	if err == nil {
		m.metrics.BytesSent(int64(len(line)))
		m.logger.Debug("%s: -> %q", id, line)
		return nil
	}
	if errors.Is(err, wireerr.ErrNotFound) {
		return err
	}

	m.metrics.RecordError(err.Error())
	m.logger.Warn("%s: %v", id, err)
	e.conn.Close()
	return err
}

func (m *Manager) write(e *Entry, line []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.live() {
		return wireerr.NotFound(e.id)
	}
	addr := e.RemoteAddr()
	if m.writeTimeout > 0 {
		if err := e.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout)); err != nil {
			m.logger.Debug("%s: write deadline: %v", e.id, err)
		}
	}
	if _, err := e.conn.Write(line); err != nil {
		m.drop(e, reasonWriteFailed)
		return wireerr.Wrap("write", addr, err)
	}
	if err := e.conn.Flush(); err != nil {
		m.drop(e, reasonWriteFailed)
		return wireerr.Wrap("flush", addr, err)
	}
	return nil
}

// Disconnect removes the connection registered under id, emits its
// final disconnected event and shuts down its write side.  The socket
// keeps draining inbound bytes for the grace period before it closes,
// but nothing it reads is delivered.
func (m *Manager) Disconnect(id string) error {
	e, ok := m.reg.Remove(id)
	if !ok {
		return wireerr.NotFound(id)
	}

	e.mu.Lock()
	if !m.drop(e, reasonDisconnect) {
		e.mu.Unlock()
		return nil
	}
	if err := e.conn.Flush(); err != nil {
		m.logger.Debug("%s: flush on disconnect: %v", id, err)
	}
	if err := e.conn.Shutdown(); err != nil {
		m.logger.Debug("%s: shutdown: %v", id, err)
	}
	e.mu.Unlock()

	m.logger.Info("%s: disconnecting", id)
	if m.grace < 0 || e.conn.SetReadDeadline(time.Now().Add(m.grace)) != nil {
		e.conn.Close()
	}
	return nil
}

// Close disconnects every registered connection and waits for their
// read loops to exit.
func (m *Manager) Close() error {
	for _, id := range m.reg.IDs() {
		if err := m.Disconnect(id); err != nil && !errors.Is(err, wireerr.ErrNotFound) {
			m.logger.Warn("%s: %v", id, err)
		}
	}
	m.wg.Wait()
	return m.est.Close()
}

func (m *Manager) readLoop(e *Entry) {
	defer m.wg.Done()

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	for {
		n, err := e.conn.Read(buf)
		if n > 0 {
			m.metrics.BytesReceived(int64(n))
			m.deliver(e, buf[:n])
		}
		if err != nil {
			m.finish(e, err)
			return
		}
	}
}

// deliver emits a copy of b while e is live.  Bytes drained after a
// disconnect are discarded.
func (m *Manager) deliver(e *Entry, b []byte) {
	e.state.Lock()
	defer e.state.Unlock()
	if e.reason != reasonNone {
		m.logger.Debug("%s: discarding %d bytes after close", e.id, len(b))
		return
	}
	data := make([]byte, len(b))
	copy(data, b)
	m.emit.Emit(event.Data(e.id, data))
}

// finish runs exactly once per entry, when its read loop stops.  Only
// a remote close or read error emits here; every other reason already
// emitted when it detached the entry.
func (m *Manager) finish(e *Entry, readErr error) {
	e.state.Lock()
	if e.detachLocked(reasonRemote) {
		m.reg.RemoveEntry(e.id, e)
		if !errors.Is(readErr, io.EOF) {
			msg := "Read error: " + readErr.Error()
			m.metrics.RecordError(msg)
			m.emit.Emit(event.Failure(e.id, msg))
		}
		m.emit.Emit(event.State(e.id, false))
	}
	reason := e.reason
	e.state.Unlock()

	e.conn.Close()
	m.metrics.ConnectionClosed()

	switch {
	case reason == reasonSuperseded:
		m.logger.Verbose("%s: replaced connection closed", e.id)
	case reason == reasonRemote && errors.Is(readErr, io.EOF):
		m.logger.Info("%s: server closed the connection", e.id)
	case reason == reasonRemote:
		m.logger.Warn("%s: Read error: %v", e.id, readErr)
	case !util.IsClosedConnErr(readErr):
		m.logger.Debug("%s: read after close: %v", e.id, readErr)
	}
	close(e.done)
}
