package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	wireerr "ircwire/internal/errors"
	"ircwire/util"
)

// DefaultSSHPort is used when SSHConfig.Port is zero.
const DefaultSSHPort = 22

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// Auth, when non-empty, replaces the methods derived from the
	// fields above.  Tests use it to log in without touching ~/.ssh.
	Auth []ssh.AuthMethod
}

// SSHTunnel implements [Tunnel] over a single ssh.Client.  Every IRC
// connection routed through the gateway is one direct-tcpip channel on
// that client.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
}

// NewSSHTunnel creates a tunnel that is ready to [Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// Connect dials the SSH gateway and completes the handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	authMethods := t.config.Auth
	if len(authMethods) == 0 {
		var err error
		authMethods, err = BuildAuthMethods(t.config)
		if err != nil {
			return wireerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
		}
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return wireerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	t.logger.Debug("ssh: dialing gateway %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return wireerr.Wrap("dial", addr, err)
	}

	// The handshake has no context of its own; bound it by ctx.
	stop := context.AfterFunc(ctx, func() { tcpConn.SetDeadline(time.Now()) }) //nolint:errcheck
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	stop()
	if err != nil {
		tcpConn.Close()
		return wireerr.WrapSSH("handshake", t.config.Host, t.config.Port, classifyHandshake(err))
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	go t.monitor(client)

	t.logger.Verbose("ssh: gateway %s established", addr)
	return nil
}

// Dial forwards a connection through the tunnel.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, wireerr.ErrNotConnected
	}

	t.logger.Debug("ssh: forwarding %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, wireerr.WrapSSH("forward", t.config.Host, t.config.Port,
			fmt.Errorf("%s: %w", address, err))
	}
	return conn, nil
}

// Close shuts down the SSH connection and every channel on it.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until client closes and flips the alive flag, unless
// a newer client has replaced it in the meantime.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("ssh: gateway closed: %v", err)
	} else {
		t.logger.Debug("ssh: gateway closed")
	}
}

// classifyHandshake tags rejected credentials and unknown host keys with
// the matching sentinel so callers can tell them from transport failures.
func classifyHandshake(err error) error {
	var keyErr *knownhosts.KeyError
	switch {
	case wireerr.As(err, &keyErr):
		return fmt.Errorf("%w: %w", wireerr.ErrHostKeyMismatch, err)
	case strings.Contains(err.Error(), "unable to authenticate"):
		return fmt.Errorf("%w: %w", wireerr.ErrAuthFailed, err)
	}
	return err
}
