// Package transport provides connection establishment for IRC servers.
// A Dialer moves the bytes (directly over TCP, or through an SSH
// gateway); the Establisher optionally layers TLS on top and hands
// back a Conn that looks the same whichever way it was built.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound TCP connections.  Implementations include a
// plain TCP dialer and an SSH-routed dialer that reaches the IRC
// server through a jump host.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
