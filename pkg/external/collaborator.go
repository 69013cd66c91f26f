package external

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/drug-repurposing-server/internal/domain"
)

// collaborator bundles the call machinery shared by every external client:
// content-addressed cache, per-collaborator interval limiter, circuit
// breaker, and retry policy. Clients embed it and route requests through
// fetch.
type collaborator struct {
	name       string
	httpClient *http.Client
	cache      *ResponseCache
	limiter    *IntervalLimiter
	breaker    *gobreaker.CircuitBreaker
	retry      RetryPolicy
	logger     *logrus.Logger
}

func newCollaborator(name string, cfg domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) collaborator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	policy := DefaultRetryPolicy()
	if cfg.RetryCount > 0 {
		policy.Attempts = cfg.RetryCount
	}

	return collaborator{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		limiter:    NewIntervalLimiter(cfg.MinInterval),
		breaker:    newBreaker(name, logger),
		retry:      policy,
		logger:     logger,
	}
}

// fetch runs fn under the shared call discipline. The cache is consulted
// first; on a miss the interval limiter, breaker, and retry policy wrap the
// live call, and a successful response is written back to the cache. fn must
// decode the response into out.
func (c *collaborator) fetch(ctx context.Context, endpoint string, params map[string]interface{}, out interface{}, fn func(ctx context.Context) error) error {
	if c.cache != nil && c.cache.GetInto(ctx, endpoint, params, out) {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retry.Do(ctx, func() error {
			return fn(ctx)
		})
	})
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"collaborator": c.name,
			"endpoint":     endpoint,
		}).Warn("External call failed")
		return err
	}

	if c.cache != nil {
		c.cache.Put(ctx, endpoint, params, out)
	}
	return nil
}
