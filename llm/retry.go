package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// retry executes fn up to maxAttempts times with jittered exponential
// backoff, stopping early when retryable reports false. Base delay doubles
// on each attempt; jitter adds 0-50% of the current delay.
func retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts || !retryable(lastErr) || ctx.Err() != nil {
			break
		}
		var jitter time.Duration
		if half := int64(delay / 2); half > 0 {
			jitter = time.Duration(rand.Int64N(half))
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
	return lastErr
}
