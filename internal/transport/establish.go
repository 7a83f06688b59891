package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	wireerr "ircwire/internal/errors"
	"ircwire/util"
)

// Establisher turns (host, port, useTLS) into a ready Conn.
type Establisher struct {
	// Dialer carries the TCP stream.  Nil means a plain TCPDialer
	// using DialTimeout.
	Dialer Dialer

	DialTimeout      time.Duration
	HandshakeTimeout time.Duration

	// RootCAs overrides the system trust store.  Nil uses the system
	// pool, which is what production connections want.
	RootCAs *x509.CertPool
	// InsecureSkipVerify disables certificate verification.  Only for
	// local test servers with throwaway certificates.
	InsecureSkipVerify bool

	Logger *util.Logger
}

func (e *Establisher) dialer() Dialer {
	if e.Dialer != nil {
		return e.Dialer
	}
	return &TCPDialer{Timeout: e.DialTimeout}
}

// Connect dials host:port and, when useTLS is set, completes a TLS
// handshake verified against host.  Dial failures are reported as a
// NetworkError with Op "dial", handshake failures with Op "tls".
func (e *Establisher) Connect(ctx context.Context, host string, port uint16, useTLS bool) (Conn, error) {
	addr := util.FormatAddr(host, port)

	dctx := ctx
	if e.DialTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, e.DialTimeout)
		defer cancel()
	}

	e.Logger.Verbose("dialing %s (tls=%v)", addr, useTLS)
	raw, err := e.dialer().Dial(dctx, "tcp", addr)
	if err != nil {
		return nil, wireerr.Wrap("dial", addr, err)
	}

	if !useTLS {
		e.Logger.Debug("connected to %s", raw.RemoteAddr())
		return newPlainConn(raw), nil
	}

	tc := tls.Client(raw, &tls.Config{
		ServerName:         host,
		RootCAs:            e.RootCAs,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: e.InsecureSkipVerify, //nolint:gosec // opt-in for test servers
	})

	hctx := ctx
	if e.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, e.HandshakeTimeout)
		defer cancel()
	}
	if err := tc.HandshakeContext(hctx); err != nil {
		raw.Close()
		if hctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", wireerr.ErrTimeout, e.HandshakeTimeout, err)
		}
		return nil, wireerr.Wrap("tls", addr, err)
	}

	st := tc.ConnectionState()
	e.Logger.Debug("tls to %s: version %s, cipher %s",
		addr, tls.VersionName(st.Version), tls.CipherSuiteName(st.CipherSuite))
	return newTLSConn(tc), nil
}

// Close releases the dialer's resources.
func (e *Establisher) Close() error {
	if e.Dialer == nil {
		return nil
	}
	return e.Dialer.Close()
}
