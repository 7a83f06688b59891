package bridge

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	wireerr "ircwire/internal/errors"
)

// Command operations.
const (
	OpConnect    = "connect"
	OpSend       = "send"
	OpDisconnect = "disconnect"
)

// Command is one front-end request.  Address is used by connect and
// Data by send.
type Command struct {
	Op      string `json:"op"`
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	Data    string `json:"data,omitempty"`
}

// Reply answers exactly one Command.
type Reply struct {
	Op    string `json:"op"`
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	// Retryable hints that repeating the command may succeed.
	Retryable bool `json:"retryable,omitempty"`
}

// execute runs cmd and returns the reply with the HTTP status that
// best describes the outcome.
func (s *Server) execute(ctx context.Context, cmd Command) (Reply, int) {
	err := s.dispatch(ctx, &cmd)
	r := Reply{Op: cmd.Op, ID: cmd.ID, OK: err == nil}
	if err != nil {
		r.Error = err.Error()
		r.Retryable = wireerr.IsRetryable(err)
		s.logger.Verbose("bridge: %s %s: %v", cmd.Op, cmd.ID, err)
	}
	return r, statusOf(err)
}

func (s *Server) dispatch(ctx context.Context, cmd *Command) error {
	switch cmd.Op {
	case OpConnect:
		if cmd.Address == "" {
			return &wireerr.ConfigError{Field: "address", Message: "address is required"}
		}
		if cmd.ID == "" {
			cmd.ID = uuid.NewString()
		}
		return s.mgr.Connect(ctx, cmd.ID, cmd.Address)
	case OpSend:
		if cmd.ID == "" {
			return &wireerr.ConfigError{Field: "id", Message: "client id is required"}
		}
		return s.mgr.Send(cmd.ID, cmd.Data)
	case OpDisconnect:
		if cmd.ID == "" {
			return &wireerr.ConfigError{Field: "id", Message: "client id is required"}
		}
		return s.mgr.Disconnect(cmd.ID)
	default:
		return &wireerr.ConfigError{Field: "op", Value: cmd.Op, Message: "unknown operation",
			Hint: "use connect, send or disconnect"}
	}
}

func statusOf(err error) int {
	var (
		ce *wireerr.ConfigError
		ne *wireerr.NetworkError
		se *wireerr.SSHError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case wireerr.Is(err, wireerr.ErrNotFound):
		return http.StatusNotFound
	case wireerr.As(err, &ce):
		return http.StatusBadRequest
	case wireerr.As(err, &ne), wireerr.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
