// Package errors holds the error values ircwire returns.  The bridge
// maps them onto HTTP statuses and reply flags, so each one records
// which step failed: the client id for NotFound, the operation and
// address for NetworkError, the gateway for SSHError, and the
// offending flag for ConfigError.
package errors

import (
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound        = errors.New("no connection found")
	ErrClosed          = errors.New("connection is closed")
	ErrNotConnected    = errors.New("not connected")
	ErrTimeout         = errors.New("operation timed out")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// NotFoundError reports a command addressed to a client id that has no
// live connection.
type NotFoundError struct {
	ClientID string
}

func (e *NotFoundError) Error() string {
	return "No connection found for client_id: " + e.ClientID
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds the error returned by send/disconnect for an unknown id.
func NotFound(id string) error { return &NotFoundError{ClientID: id} }

// NetworkError is a failed step on an IRC socket.  Op is one of dial,
// tls, write or flush.
type NetworkError struct {
	Op        string
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError is a failure reaching or using the SSH gateway.
type SSHError struct {
	Op   string // handshake, auth, hostkey or forward
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError rejects a flag, config key or command field.  Value is
// nil when the field was missing.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// Wrap builds a NetworkError, marking it retryable when err is a
// temporary network condition.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH builds an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// IsRetryable reports whether repeating the command that returned err
// may succeed.  The bridge passes it to the front end.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// OpOf returns the failing operation recorded in err, or "" when err
// carries no NetworkError.
func OpOf(err error) string {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Op
	}
	return ""
}

// classifyRetryable looks for temporary net and DNS errors.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
