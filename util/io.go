package util

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
)

// maxLineSize bounds a single input line fed to [ForwardLines].
const maxLineSize = 64 * 1024

// ForwardLines reads r line by line and hands each line (without its
// terminator) to fn until r reaches EOF, fn fails, or ctx is cancelled.
// A clean EOF returns nil.
func ForwardLines(ctx context.Context, r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, ReadBufSize), maxLineSize)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// IsClosedConnErr returns true for errors that mean "the connection is
// gone" rather than a protocol or I/O fault: EOF, use of a closed
// connection, and expired deadlines.
func IsClosedConnErr(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
