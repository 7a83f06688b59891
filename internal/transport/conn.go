package transport

import (
	"bufio"
	"crypto/tls"
	"net"
	"time"

	"ircwire/util"
)

// Kind identifies which variant a Conn is.
type Kind int

const (
	KindPlain Kind = iota
	KindTLS
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// Conn is an established IRC transport.  It is a closed set: the only
// implementations are *PlainConn and *TLSConn, both built by the
// Establisher.
//
// One goroutine may Read while another Writes/Flushes; concurrent
// writers must be serialized by the caller.
type Conn interface {
	Read(p []byte) (int, error)
	// Write buffers p; nothing reaches the wire until Flush.
	Write(p []byte) (int, error)
	Flush() error
	// Shutdown half-closes the write side.  Reads keep working until
	// the peer closes or the connection is closed.
	Shutdown() error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Kind() Kind

	sealed()
}

// closeWriter is implemented by *net.TCPConn and SSH channel conns.
type closeWriter interface {
	CloseWrite() error
}

// stream is the state both variants share: the socket, and a write
// buffer in front of it so that Flush has something to flush.
type stream struct {
	raw net.Conn
	w   *bufio.Writer
}

func newStream(raw net.Conn, wire net.Conn) stream {
	return stream{raw: raw, w: bufio.NewWriterSize(wire, util.ReadBufSize)}
}

func (s *stream) Write(p []byte) (int, error)       { return s.w.Write(p) }
func (s *stream) Flush() error                      { return s.w.Flush() }
func (s *stream) SetReadDeadline(t time.Time) error { return s.raw.SetReadDeadline(t) }
func (s *stream) SetWriteDeadline(t time.Time) error {
	return s.raw.SetWriteDeadline(t)
}
func (s *stream) RemoteAddr() net.Addr { return s.raw.RemoteAddr() }

// halfClose closes the socket's write side, or the whole socket when
// it cannot be half-closed.
func (s *stream) halfClose() error {
	if cw, ok := s.raw.(closeWriter); ok {
		return cw.CloseWrite()
	}
	return s.raw.Close()
}

// PlainConn is an unencrypted TCP transport.
type PlainConn struct {
	stream
}

func newPlainConn(raw net.Conn) *PlainConn {
	return &PlainConn{stream: newStream(raw, raw)}
}

func (c *PlainConn) Read(p []byte) (int, error) { return c.raw.Read(p) }
func (c *PlainConn) Shutdown() error            { return c.halfClose() }
func (c *PlainConn) Close() error               { return c.raw.Close() }
func (c *PlainConn) Kind() Kind                 { return KindPlain }
func (c *PlainConn) sealed()                    {}

// TLSConn is a TLS session over TCP.
type TLSConn struct {
	stream
	tls *tls.Conn
}

func newTLSConn(tc *tls.Conn) *TLSConn {
	return &TLSConn{stream: newStream(tc.NetConn(), tc), tls: tc}
}

func (c *TLSConn) Read(p []byte) (int, error) { return c.tls.Read(p) }

// Shutdown sends close_notify and then half-closes the socket.
func (c *TLSConn) Shutdown() error {
	err := c.tls.CloseWrite()
	if herr := c.halfClose(); err == nil {
		err = herr
	}
	return err
}

func (c *TLSConn) Close() error { return c.tls.Close() }
func (c *TLSConn) Kind() Kind   { return KindTLS }
func (c *TLSConn) sealed()      {}

// ConnectionState exposes the negotiated TLS parameters.
func (c *TLSConn) ConnectionState() tls.ConnectionState { return c.tls.ConnectionState() }
