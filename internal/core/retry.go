package core

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures upload retries.
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first (default: 3)
	BaseDelay    time.Duration // First backoff delay (default: 500ms)
	MaxDelay     time.Duration // Backoff ceiling (default: 5s)
	JitterFactor float64       // ±fraction applied to each delay (default: 0.2)
}

// DefaultRetryPolicy returns the default upload retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.2,
	}
}

// retry runs fn until it succeeds, fails with a non-transient error, or
// attempts run out. The last error is returned unwrapped so callers can
// still match the upload error taxonomy.
func retry[T any](ctx context.Context, policy RetryPolicy, logger *slog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt-1, policy)
			logger.Debug("retrying upload", "attempt", attempt+1, "delay", delay, "error", lastErr)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			return zero, err
		}
	}

	logger.Warn("upload retries exhausted", "attempts", attempts, "error", lastErr)
	return zero, lastErr
}

// backoff returns the jittered exponential delay for a zero-based retry index.
func backoff(retryIndex int, policy RetryPolicy) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(2, float64(retryIndex))
	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.JitterFactor > 0 {
		jitter := delay * policy.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
