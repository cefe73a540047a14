package providers

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig controls exponential backoff for model endpoint calls.
type RetryConfig struct {
	MaxRetries int           // max retry attempts (0 = no retry)
	BaseDelay  time.Duration // initial backoff delay
	MaxDelay   time.Duration // maximum backoff delay
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   15 * time.Second,
	}
}

// executeWithRetry runs fn, retrying on error with exponential backoff
// plus jitter. Returns the first successful result or the last error
// once retries are exhausted or the context is cancelled.
func executeWithRetry(ctx context.Context, cfg RetryConfig, fn func() (string, error)) (string, error) {
	var result string
	var err error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(backoffWithJitter(cfg.BaseDelay, cfg.MaxDelay, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", err
}

// backoffWithJitter computes delay = min(base * 2^attempt, max) + jitter(±25%).
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > max {
		delay = max
	}

	quarter := delay / 4
	if quarter > 0 {
		jitter := time.Duration(rand.Int64N(int64(quarter*2))) - quarter
		delay += jitter
	}
	return delay
}
