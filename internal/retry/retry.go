// Package retry provides bounded exponential-backoff retries for fallible
// operations, distinguishing permanent failures from retryable ones.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts bounds the number of tries, including the first.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is doubled after each failed attempt (no jitter).
	DefaultBaseDelay = 1 * time.Second
)

// permanentError wraps an error that must never be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as non-retryable. Do fails immediately when the
// operation returns an error wrapped with Permanent.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Options tunes Do. Zero values fall back to the defaults.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do runs op up to MaxAttempts times with pure exponential backoff
// (BaseDelay * 2^attempt) between failures. A permanent error aborts
// immediately. The last error is returned unchanged so callers can compose
// their own failure handling on top of it.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var p *permanentError
		if errors.As(err, &p) {
			return zero, p.err
		}
	}
	return zero, lastErr
}
