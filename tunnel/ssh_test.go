package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	wireerr "ircwire/internal/errors"
	"ircwire/util"
)

func TestSSHTunnel_DialThroughGateway(t *testing.T) {
	target := startGreeter(t, "hello through gateway\r\n")
	gw := startGateway(t, "irc", "secret")

	tun := NewSSHTunnel(gatewayConfig(t, gw, "secret"), util.NewLogger(0))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tun.Close()

	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive after Connect")
	}

	conn, err := tun.Dial(ctx, "tcp", target)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello through gateway\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestSSHTunnel_BadPassword(t *testing.T) {
	gw := startGateway(t, "irc", "secret")

	tun := NewSSHTunnel(gatewayConfig(t, gw, "wrong"), util.NewLogger(0))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := tun.Connect(ctx)
	if err == nil {
		tun.Close()
		t.Fatal("expected handshake failure")
	}
	var se *wireerr.SSHError
	if !wireerr.As(err, &se) || se.Op != "handshake" {
		t.Errorf("err = %v, want SSHError{Op: handshake}", err)
	}
	if !wireerr.Is(err, wireerr.ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
}

func TestSSHTunnel_DialAfterClose(t *testing.T) {
	gw := startGateway(t, "irc", "secret")

	tun := NewSSHTunnel(gatewayConfig(t, gw, "secret"), util.NewLogger(0))
	if err := tun.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := tun.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tun.IsAlive() {
		t.Error("tunnel should not be alive after Close")
	}
	if _, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1"); !wireerr.Is(err, wireerr.ErrNotConnected) {
		t.Errorf("Dial after Close: err = %v, want ErrNotConnected", err)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func gatewayConfig(t *testing.T, addr, password string) *SSHConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return &SSHConfig{
		User:        "irc",
		Host:        host,
		Port:        port,
		ConnTimeout: 2 * time.Second,
		Auth:        []ssh.AuthMethod{ssh.Password(password)},
	}
}

// startGreeter accepts connections, writes greeting, and closes.
func startGreeter(t *testing.T, greeting string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Write([]byte(greeting)) //nolint:errcheck
			c.Close()
		}
	}()
	return ln.Addr().String()
}

// startGateway runs a minimal SSH server that accepts one user and
// honours direct-tcpip channel requests.
func startGateway(t *testing.T, user, password string) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveGateway(c, cfg)
		}
	}()
	return ln.Addr().String()
}

func serveGateway(c net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(c, cfg)
	if err != nil {
		c.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "direct-tcpip" {
			nc.Reject(ssh.UnknownChannelType, "unsupported") //nolint:errcheck
			continue
		}
		var req struct {
			DestAddr string
			DestPort uint32
			OrigAddr string
			OrigPort uint32
		}
		if err := ssh.Unmarshal(nc.ExtraData(), &req); err != nil {
			nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		target, err := net.Dial("tcp", net.JoinHostPort(req.DestAddr, strconv.Itoa(int(req.DestPort))))
		if err != nil {
			nc.Reject(ssh.ConnectionFailed, err.Error()) //nolint:errcheck
			continue
		}
		ch, creqs, err := nc.Accept()
		if err != nil {
			target.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() {
			io.Copy(ch, target) //nolint:errcheck
			ch.Close()
		}()
		go func() {
			io.Copy(target, ch) //nolint:errcheck
			target.Close()
		}()
	}
}
