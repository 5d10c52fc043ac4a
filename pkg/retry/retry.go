// Package retry provides retry logic with exponential backoff.
//
// Whether an error is worth retrying is decided by its classification
// (see github.com/jmgilman/go/errors): only retryable errors are retried.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jmgilman/go/errors"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // Maximum number of attempts (0 = infinite)
	InitialWait time.Duration // Initial wait time
	MaxWait     time.Duration // Maximum wait time
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// Once returns a config that makes a single attempt.
func Once() Config {
	return Config{MaxAttempts: 1}
}

// IsRetryable returns true if the error should be retried.
func IsRetryable(err error) bool {
	return errors.IsRetryable(err)
}

// Retryable marks an error as retryable, keeping its code.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithClassification(err, errors.ClassificationRetryable)
}

// Backoff returns the wait before the attempt following attempt (1-based).
func (cfg Config) Backoff(attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	wait := float64(cfg.InitialWait) * math.Pow(multiplier, float64(attempt-1))
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	if cfg.Jitter > 0 {
		jitter := wait * cfg.Jitter * (rand.Float64()*2 - 1)
		wait += jitter
	}
	return time.Duration(wait)
}

// Do executes fn with retries.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn with retries and returns a result.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return result, err
		}

		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if cfg.MaxAttempts != 0 && attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(cfg.Backoff(attempt)):
		}
	}

	return result, lastErr
}
