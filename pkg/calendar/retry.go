package calendar

import (
	"context"
	"time"
)

// retryConfig mirrors spec §4.7's block-write retry policy: 15 attempts,
// 250ms base delay, 1.2x growth factor per attempt.
type retryConfig struct {
	attempts int
	base     time.Duration
	factor   float64
}

var blockWriteRetry = retryConfig{attempts: 15, base: 250 * time.Millisecond, factor: 1.2}

// withRetry calls fn up to cfg.attempts times, waiting cfg.base*cfg.factor^n
// between attempts, and returns the last error if every attempt fails.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	delay := cfg.base
	var lastErr error
	for attempt := 0; attempt < cfg.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.factor)
	}
	return lastErr
}
