// Package retry implements bounded exponential backoff for provider calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Errors that are worth retrying by default.
var (
	ErrRateLimited = errors.New("safeagent: rate limit exceeded")
	ErrTimeout     = errors.New("safeagent: request timeout")
	ErrServerError = errors.New("safeagent: server error (5xx)")
)

// Config controls retry behavior. Zero MaxRetries disables retries.
type Config struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RetryableErrors []error
}

// Default returns sensible retry defaults.
func Default() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []error{
			ErrRateLimited,
			ErrTimeout,
			ErrServerError,
		},
	}
}

// IsRetryable reports whether the error should trigger another attempt.
func (c Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range c.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Delay returns the backoff for the given attempt (0-based).
func (c Config) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialDelay
	}
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn, retrying retryable errors up to MaxRetries times with backoff.
// Context cancellation aborts the wait between attempts.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.IsRetryable(err) || attempt == cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(cfg.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
