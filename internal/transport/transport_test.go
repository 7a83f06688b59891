package transport

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	wireerr "ircwire/internal/errors"
	"ircwire/internal/retry"
	"ircwire/tunnel"
	"ircwire/util"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(":irc.test NOTICE * :hello\r\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != ":irc.test NOTICE * :hello\r\n" {
		t.Errorf("got %q", got)
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestEstablisher_Plain(t *testing.T) {
	ln := listen(t)
	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
		conn.Write([]byte("pong\r\n")) //nolint:errcheck
	}()

	host, port := hostPort(t, ln.Addr())
	e := &Establisher{DialTimeout: 2 * time.Second, Logger: util.NewLogger(0)}
	conn, err := e.Connect(context.Background(), host, port, false)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if conn.Kind() != KindPlain {
		t.Errorf("kind = %v, want plain", conn.Kind())
	}

	// Buffered until Flush.
	if _, err := conn.Write([]byte("PING x\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case got := <-received:
		t.Fatalf("server saw %q before Flush", got)
	case <-time.After(50 * time.Millisecond):
	}
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	select {
	case got := <-received:
		if got != "PING x\r\n" {
			t.Errorf("server got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server")
	}

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "pong\r\n" {
		t.Errorf("client got %q", buf[:n])
	}
}

func TestEstablisher_TLS(t *testing.T) {
	cert, pool := selfSigned(t)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("secure hello\r\n")) //nolint:errcheck
	}()

	host, port := hostPort(t, ln.Addr())
	e := &Establisher{
		DialTimeout:      2 * time.Second,
		HandshakeTimeout: 2 * time.Second,
		RootCAs:          pool,
		Logger:           util.NewLogger(0),
	}
	conn, err := e.Connect(context.Background(), host, port, true)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if conn.Kind() != KindTLS {
		t.Errorf("kind = %v, want tls", conn.Kind())
	}
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "secure hello\r\n" {
		t.Errorf("got %q", buf[:n])
	}
}

func TestEstablisher_TLSUntrusted(t *testing.T) {
	cert, _ := selfSigned(t)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go acceptAndHandshake(ln)

	host, port := hostPort(t, ln.Addr())
	e := &Establisher{HandshakeTimeout: 2 * time.Second, Logger: util.NewLogger(0)}

	_, err = e.Connect(context.Background(), host, port, true)
	if err == nil {
		t.Fatal("expected verification failure against system roots")
	}
	if op := wireerr.OpOf(err); op != "tls" {
		t.Errorf("op = %q, want tls (err: %v)", op, err)
	}
}

func TestEstablisher_TLSAgainstPlainServer(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("this is not a TLS record\r\n")) //nolint:errcheck
	}()

	host, port := hostPort(t, ln.Addr())
	e := &Establisher{HandshakeTimeout: 2 * time.Second, Logger: util.NewLogger(0)}
	_, err := e.Connect(context.Background(), host, port, true)
	if op := wireerr.OpOf(err); op != "tls" {
		t.Errorf("op = %q, want tls (err: %v)", op, err)
	}
}

func TestEstablisher_HandshakeTimeout(t *testing.T) {
	ln := listen(t)
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-hold
	}()

	host, port := hostPort(t, ln.Addr())
	e := &Establisher{HandshakeTimeout: 100 * time.Millisecond, Logger: util.NewLogger(0)}
	_, err := e.Connect(context.Background(), host, port, true)
	if op := wireerr.OpOf(err); op != "tls" {
		t.Errorf("op = %q, want tls (err: %v)", op, err)
	}
	if !wireerr.Is(err, wireerr.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestEstablisher_DialFailure(t *testing.T) {
	ln := listen(t)
	host, port := hostPort(t, ln.Addr())
	ln.Close()

	e := &Establisher{DialTimeout: time.Second, Logger: util.NewLogger(0)}
	_, err := e.Connect(context.Background(), host, port, false)
	if op := wireerr.OpOf(err); op != "dial" {
		t.Errorf("op = %q, want dial (err: %v)", op, err)
	}
}

func TestConn_ShutdownHalfCloses(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Drain to EOF, then answer: the client's read side must still work.
		got, _ := io.ReadAll(conn)
		conn.Write([]byte("bye " + string(got))) //nolint:errcheck
	}()

	host, port := hostPort(t, ln.Addr())
	e := &Establisher{Logger: util.NewLogger(0)}
	conn, err := e.Connect(context.Background(), host, port, false)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("QUIT\r\n")) //nolint:errcheck
	if err := conn.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := conn.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll after Shutdown: %v", err)
	}
	if string(got) != "bye QUIT\r\n" {
		t.Errorf("got %q", got)
	}
}

func TestSSHDialer_UnreachableGateway(t *testing.T) {
	ln := listen(t)
	host, port := hostPort(t, ln.Addr())
	ln.Close()

	d := NewSSHDialer(&tunnel.SSHConfig{
		User:        "irc",
		Host:        host,
		Port:        int(port),
		ConnTimeout: time.Second,
		Auth:        []ssh.AuthMethod{ssh.Password("hunter2")},
	}, util.NewLogger(0))
	d.Retry = &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 2}
	defer d.Close()

	_, err := d.Dial(context.Background(), "tcp", "irc.example.net:6697")
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if !strings.Contains(err.Error(), "gave up after 2 attempts") {
		t.Errorf("unreachable gateway should be retried: %v", err)
	}
	if op := wireerr.OpOf(err); op != "dial" {
		t.Errorf("op = %q, want dial", op)
	}
}

func TestSSHDialer_AuthFailureNotRetried(t *testing.T) {
	d := NewSSHDialer(&tunnel.SSHConfig{
		User:        "irc",
		Host:        "127.0.0.1",
		Port:        1,
		ConnTimeout: time.Second,
		KeyPath:     "/nonexistent/key",
	}, util.NewLogger(0))
	d.Retry = &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 5}
	defer d.Close()

	_, err := d.Dial(context.Background(), "tcp", "irc.example.net:6697")
	var se *wireerr.SSHError
	if !wireerr.As(err, &se) || se.Op != "auth" {
		t.Fatalf("err = %v, want SSHError op auth", err)
	}
	if strings.Contains(err.Error(), "gave up") {
		t.Errorf("auth failure was retried: %v", err)
	}
}

func TestKind_String(t *testing.T) {
	if KindPlain.String() != "plain" || KindTLS.String() != "tls" || Kind(9).String() != "unknown" {
		t.Error("unexpected Kind strings")
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func hostPort(t *testing.T, addr net.Addr) (string, uint16) {
	t.Helper()
	host, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		t.Fatal(err)
	}
	return host, uint16(port)
}

func acceptAndHandshake(ln net.Listener) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	if tc, ok := conn.(*tls.Conn); ok {
		tc.Handshake() //nolint:errcheck
	}
}

// selfSigned returns a certificate valid for 127.0.0.1 and a pool
// that trusts it.
func selfSigned(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "irc.test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}
