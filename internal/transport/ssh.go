package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	wireerr "ircwire/internal/errors"
	"ircwire/internal/retry"
	"ircwire/tunnel"
	"ircwire/util"
)

// SSHDialer routes connections through an SSH gateway.  The gateway
// is connected lazily on the first Dial, and reconnected on a later
// Dial if it has dropped in the meantime.  All IRC connections share
// the one gateway session.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config *tunnel.SSHConfig
	logger *util.Logger
	mu     sync.Mutex

	// Retry bounds gateway establishment.  SSH-level failures such as
	// a rejected key are never retried, only failures to reach it.
	Retry *retry.Backoff
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH gateway.  The gateway is not contacted until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
		Retry:  retry.GatewayBackoff(),
	}
}

// ensure establishes the gateway if it is not currently up.
func (d *SSHDialer) ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	d.logger.Verbose("establishing SSH gateway %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)

	err := d.Retry.Do(ctx, func(attempt int) error {
		err := d.tunnel.Connect(ctx)
		var se *wireerr.SSHError
		if wireerr.As(err, &se) {
			return retry.Permanent(err)
		}
		if err != nil {
			d.logger.Verbose("gateway attempt %d: %v", attempt, err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// Dial connects to address through the SSH gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the gateway and every connection routed through it.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
