package external

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// IntervalLimiter enforces a per-process minimum wall-clock gap between
// consecutive requests to one collaborator. A nil limiter allows every
// request through, so clients without an interval skip construction.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalLimiter builds a limiter with the given minimum interval.
// Returns nil for a zero interval.
func NewIntervalLimiter(minInterval time.Duration) *IntervalLimiter {
	if minInterval <= 0 {
		return nil
	}
	return &IntervalLimiter{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Wait blocks until the next request slot or context cancellation
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
