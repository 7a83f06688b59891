package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	wireerr "ircwire/internal/errors"
	"ircwire/internal/event"
	"ircwire/internal/socket"
	"ircwire/util"
)

// InteractiveMode drives one connection from a terminal: each stdin
// line is sent as one IRC line and server bytes are copied to stdout
// verbatim.
type InteractiveMode struct {
	Manager  *socket.Manager
	Events   *event.Queue
	ClientID string
	Address  string
	Logger   *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *InteractiveMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *InteractiveMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects and relays until the server closes the connection, the
// connection fails, or ctx is cancelled.  End of stdin disconnects.  A
// read failure is returned as an error.
func (m *InteractiveMode) Run(ctx context.Context) error {
	defer m.Manager.Close()

	if err := m.Manager.Connect(ctx, m.ClientID, m.Address); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := make(chan error, 1)
	go func() {
		input <- util.ForwardLines(ctx, m.stdin(), func(line string) error {
			return m.Manager.Send(m.ClientID, line)
		})
	}()

	var readErr error
	for {
		select {
		case <-ctx.Done():
			m.Logger.Verbose("%s: interrupted", m.ClientID)
			return nil

		case err := <-input:
			input = nil
			switch {
			case err == nil:
				m.Logger.Verbose("%s: end of input, disconnecting", m.ClientID)
			case errors.Is(err, wireerr.ErrNotFound):
				// The connection is already gone; its events follow.
				continue
			default:
				m.Logger.Warn("%s: %v", m.ClientID, err)
			}
			if err := m.Manager.Disconnect(m.ClientID); err != nil && !errors.Is(err, wireerr.ErrNotFound) {
				m.Logger.Warn("%s: %v", m.ClientID, err)
			}

		case p, ok := <-m.Events.Events():
			if !ok {
				return readErr
			}
			switch p.Kind() {
			case event.KindData:
				if _, err := m.stdout().Write(p.Event.Message.Data); err != nil {
					return fmt.Errorf("stdout: %w", err)
				}
			case event.KindError:
				readErr = errors.New(*p.Event.Error)
				m.Logger.Error("%s: %s", m.ClientID, *p.Event.Error)
			case event.KindState:
				if p.IsDisconnect() {
					m.Logger.Info("%s: disconnected", m.ClientID)
					return readErr
				}
				m.Logger.Info("%s: connected to %s", m.ClientID, m.Address)
			}
		}
	}
}
