package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the IRCWIRE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("1m30s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("IRCWIRE_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("IRCWIRE_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("IRCWIRE_SERVE"); v != "" {
		cfg.Serve = v
	}
	if v := envDuration("IRCWIRE_TIMEOUT"); v > 0 {
		cfg.DialTimeout = v
	}
	if v := envDuration("IRCWIRE_HANDSHAKE_TIMEOUT"); v > 0 {
		cfg.HandshakeTimeout = v
	}
	if v := envDuration("IRCWIRE_WRITE_TIMEOUT"); v > 0 {
		cfg.WriteTimeout = v
	}
	if v := envDuration("IRCWIRE_GRACE"); v > 0 {
		cfg.GracePeriod = v
	}
	if v := envInt("IRCWIRE_EVENT_BUFFER"); v > 0 {
		cfg.EventBuffer = v
	}
	if v := os.Getenv("IRCWIRE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if envBool("IRCWIRE_INSECURE") {
		cfg.TLSInsecure = true
	}

	// SSH gateway
	if v := os.Getenv("IRCWIRE_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("IRCWIRE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("IRCWIRE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("IRCWIRE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("IRCWIRE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("IRCWIRE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("IRCWIRE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("IRCWIRE_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
