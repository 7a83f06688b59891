// Package core is the orchestration layer.  It composes the transport,
// the socket manager, and the event queue into complete operational
// modes and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  socket  →  event  →  bridge  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of ircwire: one interactive
// connection on stdin/stdout, or the bridge serving a front end.
// Each mode owns its full lifecycle from startup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
