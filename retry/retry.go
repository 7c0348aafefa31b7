// Package retry provides a configurable retry policy with exponential
// backoff and jitter. Two independent policies are used across the SDK: one
// inside the HTTP transport and one at the orchestrator's verification tier.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config defines a retry policy.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier scales the delay after each attempt. Values <= 1 yield a
	// fixed delay.
	Multiplier float64

	// Jitter adds a random duration in [0, Jitter) to every delay.
	Jitter time.Duration
}

// Delay returns the backoff delay before retry number attempt (0-based),
// before jitter is applied.
func (c Config) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	if c.Multiplier > 1 {
		for i := 0; i < attempt; i++ {
			d = time.Duration(float64(d) * c.Multiplier)
			if c.MaxDelay > 0 && d >= c.MaxDelay {
				return c.MaxDelay
			}
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// PermanentError wraps an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that WithRetry stops immediately.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// WithRetry calls fn until it succeeds, the policy is exhausted, fn returns
// a permanent or non-retryable error, or ctx is done. retryable may be nil,
// in which case every non-permanent error is retried.
func WithRetry[T any](ctx context.Context, cfg Config, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var result T
		result, err = fn()
		if err == nil {
			return result, nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return zero, pe.Err
		}
		if retryable != nil && !retryable(err) {
			return zero, err
		}

		if attempt == attempts-1 {
			break
		}

		delay := cfg.Delay(attempt)
		if cfg.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(cfg.Jitter)))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, err
}
