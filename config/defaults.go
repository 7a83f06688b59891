package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPlainPort is used for addresses without a port or scheme.
	DefaultPlainPort = 6667

	// DefaultTLSPort is used for "ircs://" addresses without a port.
	DefaultTLSPort = 6697

	// DefaultReadBufSize is the size of each read from a server.
	DefaultReadBufSize = 4096

	// DefaultDialTimeout bounds TCP connection establishment.
	DefaultDialTimeout = 30 * time.Second

	// DefaultHandshakeTimeout bounds the TLS handshake.
	DefaultHandshakeTimeout = 15 * time.Second

	// DefaultGracePeriod is how long a disconnected socket may keep
	// draining inbound bytes before it is closed.
	DefaultGracePeriod = 5 * time.Second

	// DefaultEventBuffer is how many events may queue for a slow
	// front end before the oldest are dropped.
	DefaultEventBuffer = 256

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// Log rotation limits for --log-file.
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)
