// Package retry bounds how hard ircwire tries to bring up shared
// infrastructure such as an SSH gateway.  IRC connections themselves
// are never retried here; reconnecting is the front end's decision.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// PermanentError marks a failure that another attempt cannot fix,
// such as a rejected SSH key.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so [Backoff.Do] returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff is an exponential retry budget.
type Backoff struct {
	InitialDelay time.Duration // default 500ms
	MaxDelay     time.Duration // default 5s
	MaxAttempts  int           // total tries including the first; 0 → 1
	Jitter       bool          // ±25% on each wait
}

// GatewayBackoff is the budget for establishing an SSH gateway: a
// flaky bastion gets a couple more tries, a dead one fails in seconds.
func GatewayBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		MaxAttempts:  3,
		Jitter:       true,
	}
}

// Do calls fn until it succeeds, returns a [Permanent] error, runs out
// of attempts, or ctx is done.  attempt is 1-based.  The returned error
// wraps the last failure.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		wait := delay
		if b.Jitter {
			wait = jitter(delay)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), err))
		case <-time.After(wait):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// jitter returns d ±25%, never below a millisecond.
func jitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	out := time.Duration(float64(d) + rand.Float64()*2*quarter - quarter) //nolint:gosec
	if out < time.Millisecond {
		return time.Millisecond
	}
	return out
}
