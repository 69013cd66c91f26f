package external

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the single retry primitive applied at every HTTP boundary.
// Exponential backoff with jitter, bounded attempts.
type RetryPolicy struct {
	Attempts     int
	BaseInterval time.Duration
	MaxInterval  time.Duration
}

// DefaultRetryPolicy matches the backoff most collaborators tolerate
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		BaseInterval: 2 * time.Second,
		MaxInterval:  10 * time.Second,
	}
}

// Do runs fn under the policy, honoring context cancellation between
// attempts. The last error is returned when all attempts fail.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseInterval
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = 0

	return backoff.Retry(fn, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}

// Permanent marks an error as non-retryable (4xx class failures)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
