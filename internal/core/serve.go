package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"ircwire/internal/bridge"
	"ircwire/internal/event"
	"ircwire/internal/socket"
	"ircwire/util"
)

// shutdownTimeout bounds how long in-flight HTTP requests may run
// once the bridge is stopping.
const shutdownTimeout = 5 * time.Second

// BridgeMode serves the bridge on Address until ctx is cancelled, then
// detaches subscribers and closes every IRC connection.
type BridgeMode struct {
	Address string
	Server  *bridge.Server
	Manager *socket.Manager
	Events  *event.Queue
	Logger  *util.Logger

	// Ready, when set, receives the bound listen address.
	Ready chan<- string
}

// Run listens and serves.  It returns nil after a clean shutdown.
func (m *BridgeMode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.Address, err)
	}
	m.Logger.Info("bridge listening on http://%s", ln.Addr())
	if m.Ready != nil {
		m.Ready <- ln.Addr().String()
	}

	srv := &http.Server{
		Handler:           m.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	pumpCtx, stopPump := context.WithCancel(context.Background())
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		m.Server.Pump(pumpCtx)
	}()

	// Shut the server down when the context expires.
	go func() {
		<-ctx.Done()
		m.Server.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			m.Logger.Warn("bridge shutdown: %v", err)
		}
	}()

	err = srv.Serve(ln)
	if err := m.Manager.Close(); err != nil {
		m.Logger.Warn("closing connections: %v", err)
	}
	stopPump()
	<-pumped
	m.Events.Close()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
