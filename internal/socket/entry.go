package socket

import (
	"sync"

	"ircwire/internal/transport"
)

// closeReason records who ended a connection first.  Only the first
// reason sticks.
type closeReason int

const (
	reasonNone        closeReason = iota
	reasonDisconnect              // explicit disconnect
	reasonSuperseded              // a newer connect took the same id
	reasonWriteFailed             // send hit a write or flush error
	reasonRemote                  // read loop saw EOF or a read error
)

// Entry is one registered connection.
type Entry struct {
	id   string
	conn transport.Conn

	// mu serializes write+flush spans and shutdown.
	mu sync.Mutex

	// state guards reason and is held while the entry emits, so no
	// event follows the entry's final connected:false.  Lock order is
	// mu before state.
	state  sync.Mutex
	reason closeReason

	done chan struct{}
}

func newEntry(id string, conn transport.Conn) *Entry {
	return &Entry{id: id, conn: conn, done: make(chan struct{})}
}

// ID returns the client id the entry was registered under.
func (e *Entry) ID() string { return e.id }

// Kind reports whether the connection is plain or TLS.
func (e *Entry) Kind() transport.Kind { return e.conn.Kind() }

// RemoteAddr returns the server address as a string.
func (e *Entry) RemoteAddr() string { return e.conn.RemoteAddr().String() }

// Done is closed once the entry's read loop has exited and the
// connection is closed.
func (e *Entry) Done() <-chan struct{} { return e.done }

// detachLocked records r as the close reason unless one is already set,
// and reports whether it did.  Caller must hold e.state.
func (e *Entry) detachLocked(r closeReason) bool {
	if e.reason != reasonNone {
		return false
	}
	e.reason = r
	return true
}

// live reports whether no close reason has been recorded yet.
func (e *Entry) live() bool {
	e.state.Lock()
	defer e.state.Unlock()
	return e.reason == reasonNone
}
