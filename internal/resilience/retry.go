// Package resilience provides the retry-with-backoff and circuit-breaker
// protection the engine wraps around embedder and vector-store calls,
// adapted from the teacher's internal/retry and internal/circuitbreaker
// packages.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls Retrier's backoff schedule.
type RetryConfig struct {
	MaxAttempts     int           // attempts, 1-indexed; must be >= 1
	BaseDelay       time.Duration // delay before attempt 2
	MaxDelay        time.Duration // ceiling on any single delay
	Jitter          float64       // +/- fraction of delay, 0..1
	RetryableKinds  func(err error) bool
}

// DefaultRetryConfig mirrors the teacher's DefaultConfig shape.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.1,
	}
}

// Retrier executes a fallible operation with exponential backoff. The delay
// after failed attempt k (1-indexed), i.e. before attempt k+1, is
// min(base * 2^(k-1), max_delay) with optional jitter; only errors
// RetryableKinds accepts are retried.
type Retrier struct {
	cfg RetryConfig
}

// NewRetrier builds a Retrier; a zero-value RetryableKinds retries every
// error.
func NewRetrier(cfg RetryConfig) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryableKinds == nil {
		cfg.RetryableKinds = func(error) bool { return true }
	}
	return &Retrier{cfg: cfg}
}

// Do runs op, retrying on retryable errors up to MaxAttempts times. The
// last error is returned if every attempt fails.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !r.cfg.RetryableKinds(lastErr) {
			return lastErr
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.delayFor(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (r *Retrier) delayFor(attempt int) time.Duration {
	raw := float64(r.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(r.cfg.MaxDelay); r.cfg.MaxDelay > 0 && raw > max {
		raw = max
	}
	if r.cfg.Jitter > 0 {
		delta := raw * r.cfg.Jitter
		raw = raw - delta + rand.Float64()*2*delta
	}
	if raw < 0 {
		raw = 0
	}
	return time.Duration(raw)
}
