// Package retry runs an operation a bounded number of times with a fixed pause between attempts.
//
// Usage:
//
//	p := retry.Policy{MaxAttempts: 2, Delay: 2 * time.Second}
//	err := p.Do(ctx, func(ctx context.Context) error {
//	    return backend.Call(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy controls retry behaviour.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Zero or negative values mean a single attempt.
	MaxAttempts int
	// Delay is the fixed wait before every attempt after the first.
	Delay time.Duration
	// ShouldRetry classifies errors as retryable. When nil every error is retried.
	ShouldRetry func(err error) bool
	// Sleep replaces the real timer, mainly in tests. When nil SleepContext is used.
	Sleep SleepFunc
}

// SleepContext waits for d on a real timer, returning early when ctx is cancelled.
func SleepContext(ctx context.Context, d time.Duration) error {
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

// Do calls fn until it succeeds, a non-retryable error occurs, ctx is cancelled or
// MaxAttempts is reached. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Delay); err != nil {
				return errors.Join(lastErr, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(lastErr) {
			return lastErr
		}
		if attempt < attempts {
			slog.Debug("retry: attempt failed, retrying",
				"attempt", attempt, "max", attempts,
				"err", lastErr, "delay", p.Delay)
		}
	}
	return lastErr
}
