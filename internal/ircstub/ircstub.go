// Package ircstub runs a scripted IRC server on the loopback interface
// for tests.  Each accepted connection is handed to the test as a Peer
// that can read framed lines and write raw bytes.
package ircstub

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"
)

// Timeout bounds every blocking helper so a broken test fails instead
// of hanging.
const Timeout = 3 * time.Second

// Server is a loopback listener, plain or TLS.
type Server struct {
	ln    net.Listener
	tls   bool
	pool  *x509.CertPool
	peers chan *Peer
}

// New starts a plain server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return start(t, ln, false, nil)
}

// NewTLS starts a TLS server with a throwaway certificate for
// 127.0.0.1.  Pool returns a trust store that accepts it.
func NewTLS(t testing.TB) *Server {
	t.Helper()
	cert, pool := SelfSigned(t)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		t.Fatal(err)
	}
	return start(t, ln, true, pool)
}

func start(t testing.TB, ln net.Listener, isTLS bool, pool *x509.CertPool) *Server {
	s := &Server{ln: ln, tls: isTLS, pool: pool, peers: make(chan *Peer, 16)}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.admit(conn)
	}
}

// admit completes the server side of a TLS handshake before handing
// the connection over, so a client blocked in its handshake is not
// waiting on the test to do I/O.
func (s *Server) admit(conn net.Conn) {
	if tc, ok := conn.(*tls.Conn); ok {
		tc.SetDeadline(time.Now().Add(Timeout)) //nolint:errcheck
		if err := tc.Handshake(); err != nil {
			conn.Close()
			return
		}
		tc.SetDeadline(time.Time{}) //nolint:errcheck
	}
	s.peers <- &Peer{Conn: conn, r: bufio.NewReader(conn)}
}

// HostPort is the listener address as "127.0.0.1:port".
func (s *Server) HostPort() string { return s.ln.Addr().String() }

// Address is what a client passes to connect: HostPort with an
// "ircs://" prefix for a TLS server.
func (s *Server) Address() string {
	if s.tls {
		return "ircs://" + s.HostPort()
	}
	return s.HostPort()
}

// Pool is the trust store for a TLS server, nil for a plain one.
func (s *Server) Pool() *x509.CertPool { return s.pool }

// Accept waits for the next client.
func (s *Server) Accept(t testing.TB) *Peer {
	t.Helper()
	select {
	case p := <-s.peers:
		t.Cleanup(func() { p.Close() })
		return p
	case <-time.After(Timeout):
		t.Fatal("ircstub: no client connected")
		return nil
	}
}

// Peer is the server side of one client connection.
type Peer struct {
	net.Conn
	r *bufio.Reader
}

// ReadLine reads one CRLF-terminated line and returns it with the
// terminator intact.
func (p *Peer) ReadLine(t testing.TB) string {
	t.Helper()
	p.SetReadDeadline(time.Now().Add(Timeout)) //nolint:errcheck
	line, err := p.r.ReadString('\n')
	if err != nil {
		t.Fatalf("ircstub: read line: %v (partial %q)", err, line)
	}
	if !strings.HasSuffix(line, "\r\n") {
		t.Fatalf("ircstub: line %q is not CRLF-terminated", line)
	}
	return line
}

// ExpectSilence fails the test if any byte arrives within d.
func (p *Peer) ExpectSilence(t testing.TB, d time.Duration) {
	t.Helper()
	p.SetReadDeadline(time.Now().Add(d)) //nolint:errcheck
	b, err := p.r.ReadByte()
	if err == nil {
		t.Fatalf("ircstub: unexpected byte %q", b)
	}
	if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
		t.Fatalf("ircstub: expected timeout, got %v", err)
	}
}

// WaitEOF waits until the client closes its write side.
func (p *Peer) WaitEOF(t testing.TB) {
	t.Helper()
	p.SetReadDeadline(time.Now().Add(Timeout)) //nolint:errcheck
	for {
		if _, err := p.r.ReadByte(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.Fatal("ircstub: client never closed")
			}
			return
		}
	}
}

// Send writes s verbatim.
func (p *Peer) Send(t testing.TB, s string) {
	t.Helper()
	if _, err := p.Write([]byte(s)); err != nil {
		t.Fatalf("ircstub: write: %v", err)
	}
}

// Reset aborts the connection with a TCP RST instead of a FIN.
func (p *Peer) Reset() {
	raw := p.Conn
	if tc, ok := raw.(*tls.Conn); ok {
		raw = tc.NetConn()
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		tcp.SetLinger(0) //nolint:errcheck
	}
	raw.Close()
}

// SelfSigned returns a certificate valid for 127.0.0.1 and localhost,
// and a pool that trusts it.
func SelfSigned(t testing.TB) (tls.Certificate, *x509.CertPool) {
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
