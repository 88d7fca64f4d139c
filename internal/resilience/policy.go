// Package resilience bounds calls to external capabilities with a timeout,
// a single retry for transient failures and an optional client-side rate limit.
package resilience

import (
	"context"
	"errors"
	"net"
	"time"
)

// Policy configures Do. A zero Timeout means the attempt is bounded only by the parent context.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// maxRetries is the hard cap on retries regardless of configuration.
const maxRetries = 1

type retryable interface {
	IsRetryable() bool
}

// IsTransient reports whether err is worth retrying: attempt timeouts, network
// timeouts and errors that declare themselves retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// Do runs fn under p. Each attempt gets its own timeout derived from ctx.
// Cancellation of ctx is returned immediately and never retried.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retries := p.MaxRetries
	if retries > maxRetries {
		retries = maxRetries
	}
	if retries < 0 {
		retries = 0
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if werr := sleep(ctx, p.Backoff); werr != nil {
				return result, werr
			}
		}
		result, err = runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !IsTransient(err) {
			return result, err
		}
	}
	return result, err
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, err := fn(attemptCtx)
	if err == nil && attemptCtx.Err() == context.DeadlineExceeded {
		// fn ignored its context and finished late; treat as a timeout.
		var zero T
		return zero, context.DeadlineExceeded
	}
	return result, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
