// Package retry implements context-aware retries with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Func is the operation to retry. A nil error stops further attempts.
type Func func(ctx context.Context) error

// Default backoff configuration.
const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
	defaultMultiplier   = 2.0
)

type config struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// Option applies a configuration option to a retry run.
type Option func(*config)

// WithMaxAttempts sets the total number of attempts including the first.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithMultiplier sets the exponential backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *config) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// Do runs fn until it succeeds, the attempts run out, or ctx is
// done. The delay before retry k is initialDelay * multiplier^(k-1), capped
// at maxDelay. The last error is wrapped in the returned failure.
func Do(ctx context.Context, fn Func, opts ...Option) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		multiplier:   defaultMultiplier,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delayFor(attempt-1, cfg))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted on attempt %d/%d: %w", attempt, cfg.maxAttempts, ctx.Err())
			case <-timer.C:
			}
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxAttempts, lastErr)
}

// delayFor computes the backoff before the given retry (1-based).
func delayFor(retry int, cfg *config) time.Duration {
	d := float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(retry-1))
	if time.Duration(d) > cfg.maxDelay {
		return cfg.maxDelay
	}
	return time.Duration(d)
}
