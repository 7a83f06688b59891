// Package config defines the runtime configuration for ircwire and
// provides helpers for loading it from a YAML file and the environment
// and for parsing SSH gateway specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	wireerr "ircwire/internal/errors"
)

// Config holds every tuneable for one ircwire process.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Address          string        `yaml:"address"`   // interactive mode target
	ClientID         string        `yaml:"client_id"` // empty → generated
	Serve            string        `yaml:"serve"`     // bridge listen address
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"` // 0 → none
	GracePeriod      time.Duration `yaml:"grace_period"`
	EventBuffer      int           `yaml:"event_buffer"`
	TLSInsecure      bool          `yaml:"tls_insecure"`
	AllowedOrigins   []string      `yaml:"allowed_origins"` // bridge WebSocket origins

	// ── SSH gateway ──────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // raw [user@]host[:port]
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose       int    `yaml:"verbose"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		GracePeriod:      DefaultGracePeriod,
		EventBuffer:      DefaultEventBuffer,
		LogMaxSizeMB:     DefaultLogMaxSizeMB,
		LogMaxBackups:    DefaultLogMaxBackups,
		LogMaxAgeDays:    DefaultLogMaxAgeDays,
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec into the Tunnel* fields.  An empty
// spec disables the gateway.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &wireerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use [user@]host[:port], e.g. admin@bastion.example.com:2222",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch {
	case c.Address == "" && c.Serve == "":
		return &wireerr.ConfigError{
			Field:   "serve",
			Message: "an IRC address or a bridge listen address is required",
			Hint:    "run `ircwire irc.libera.chat` or `ircwire --serve 127.0.0.1:8080`",
		}
	case c.Address != "" && c.Serve != "":
		return &wireerr.ConfigError{
			Field:   "serve",
			Value:   c.Serve,
			Message: "an IRC address and --serve are mutually exclusive",
			Hint:    "bridge clients choose their own addresses",
		}
	}

	for _, d := range []struct {
		field string
		v     time.Duration
	}{
		{"timeout", c.DialTimeout},
		{"handshake-timeout", c.HandshakeTimeout},
		{"grace", c.GracePeriod},
	} {
		if d.v <= 0 {
			return &wireerr.ConfigError{Field: d.field, Value: d.v, Message: "must be positive"}
		}
	}
	if c.WriteTimeout < 0 {
		return &wireerr.ConfigError{
			Field: "write-timeout", Value: c.WriteTimeout,
			Message: "must not be negative", Hint: "use 0 to disable the write timeout",
		}
	}

	if c.EventBuffer < 1 {
		return &wireerr.ConfigError{
			Field:   "event-buffer",
			Value:   c.EventBuffer,
			Message: "must be at least 1",
			Hint:    fmt.Sprintf("the default is %d", DefaultEventBuffer),
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &wireerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.StrictHostKey && !c.TunnelEnabled {
		return &wireerr.ConfigError{
			Field:   "strict-hostkey",
			Message: "only applies with --tunnel",
		}
	}
	return nil
}
