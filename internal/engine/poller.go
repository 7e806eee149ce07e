package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scriba_backend/internal/logger"
)

// ErrPollTimeout is returned when an external operation does not reach a
// terminal state within the configured window.
var ErrPollTimeout = errors.New("engine: polling timed out")

// PollFunc inspects an external operation once. It returns done=true when the
// operation reached a terminal state. Errors are treated as transient and
// retried unless wrapped with Permanent.
type PollFunc func(ctx context.Context) (done bool, err error)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-retryable; the poller stops and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Poller repeatedly checks an external operation until it finishes, fails
// permanently, times out, or the context is cancelled.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
}

func NewPoller(interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Poller{Interval: interval, Timeout: timeout}
}

// Poll runs fn every Interval until it reports done. Transient errors are
// logged and retried; the deadline keeps counting through them.
func (p *Poller) Poll(ctx context.Context, fn PollFunc) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			logger.CtxWarn(ctx, "poll attempt failed, retrying", "error", err.Error())
		} else if done {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrPollTimeout, p.Timeout)
			}
			return ctx.Err()
		}
	}
}
