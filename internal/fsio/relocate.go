package fsio

import (
	"fmt"
	"os"
	"time"
)

// RetryPolicy bounds the relocation retry loop.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the built-in retry config.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 200 * time.Millisecond}

// SafeRelocate moves src to dst, retrying with a fixed delay between
// attempts. Exhausting all attempts returns the last underlying error
// unchanged in the wrap chain; the caller treats that as fatal.
func SafeRelocate(src, dst string, policy RetryPolicy) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(policy.Delay)
		}
		if err := os.Rename(src, dst); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("relocate %s -> %s after %d attempts: %w", src, dst, attempts, lastErr)
}
