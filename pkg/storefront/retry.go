package storefront

import (
	"context"
	"time"
)

// withRetry runs fn and repeats it up to retries more times, waiting delay
// in between, while retryIf reports the outcome as not yet settled.
// The last outcome is returned as-is.
func withRetry[T any](ctx context.Context, retries int, delay time.Duration, retryIf func(T, error) bool, fn func(attempt int) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		result, err := fn(attempt)
		if attempt >= retries || !retryIf(result, err) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(delay):
		}
	}
}
