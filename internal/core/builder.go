package core

import (
	"github.com/google/uuid"

	"ircwire/config"
	"ircwire/internal/bridge"
	"ircwire/internal/event"
	"ircwire/internal/metrics"
	"ircwire/internal/socket"
	"ircwire/internal/transport"
	"ircwire/tunnel"
	"ircwire/util"
)

// Build constructs the appropriate Mode from the given configuration.
// cfg is expected to have passed Validate.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	col := metrics.New()
	events := event.NewQueue(cfg.EventBuffer, col)
	mgr := socket.NewManager(socket.Options{
		Establisher:  buildEstablisher(cfg, logger),
		Emitter:      events,
		Metrics:      col,
		Logger:       logger,
		WriteTimeout: cfg.WriteTimeout,
		GracePeriod:  cfg.GracePeriod,
	})

	if cfg.Serve != "" {
		return &BridgeMode{
			Address: cfg.Serve,
			Manager: mgr,
			Events:  events,
			Server: bridge.New(bridge.Options{
				Manager:        mgr,
				Events:         events,
				Metrics:        col,
				Logger:         logger,
				AllowedOrigins: cfg.AllowedOrigins,
			}),
			Logger: logger,
		}, nil
	}

	id := cfg.ClientID
	if id == "" {
		id = uuid.NewString()
	}
	return &InteractiveMode{
		Manager:  mgr,
		Events:   events,
		ClientID: id,
		Address:  cfg.Address,
		Logger:   logger,
	}, nil
}

// buildEstablisher creates the establisher every connection is opened
// with, routed through the SSH gateway when one is configured.
func buildEstablisher(cfg *config.Config, logger *util.Logger) *transport.Establisher {
	var dialer transport.Dialer = &transport.TCPDialer{Timeout: cfg.DialTimeout}
	if cfg.TunnelEnabled {
		dialer = transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.DialTimeout,
		}, logger)
	}
	return &transport.Establisher{
		Dialer:             dialer,
		DialTimeout:        cfg.DialTimeout,
		HandshakeTimeout:   cfg.HandshakeTimeout,
		InsecureSkipVerify: cfg.TLSInsecure,
		Logger:             logger,
	}
}
