package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-repurposing-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRetryPolicy_RetriesTransientErrors(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_StopsOnPermanent(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestRetryPolicy_BoundedAttempts(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, BaseInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("always failing")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestIntervalLimiter_EnforcesGap(t *testing.T) {
	limiter := NewIntervalLimiter(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestIntervalLimiter_NilAllowsAll(t *testing.T) {
	limiter := NewIntervalLimiter(0)
	assert.Nil(t, limiter)
	assert.NoError(t, limiter.Wait(context.Background()))
}

func TestCollaborator_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newCollaborator("test", domain.APIClientConfig{
		BaseURL:    server.URL,
		Timeout:    time.Second,
		RetryCount: 1,
	}, nil, testLogger())

	ctx := context.Background()
	fail := func(ctx context.Context) error {
		var out map[string]interface{}
		return getJSON(ctx, c.httpClient, server.URL, nil, nil, &out)
	}

	for i := 0; i < 5; i++ {
		var out map[string]interface{}
		err := c.fetch(ctx, "test/endpoint", map[string]interface{}{"i": i}, &out, fail)
		require.Error(t, err)
		assert.False(t, IsBreakerOpen(err))
	}

	before := calls.Load()
	var out map[string]interface{}
	err := c.fetch(ctx, "test/endpoint", map[string]interface{}{"i": 6}, &out, fail)
	require.Error(t, err)
	assert.True(t, IsBreakerOpen(err), "sixth call should short-circuit")
	assert.Equal(t, before, calls.Load(), "open breaker must not hit the server")
}

func TestCollaborator_CacheHitSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":"fresh"}`))
	}))
	defer server.Close()

	cache := newTestCache(t)
	c := newCollaborator("test", domain.APIClientConfig{
		BaseURL: server.URL,
		Timeout: time.Second,
	}, cache, testLogger())

	ctx := context.Background()
	params := map[string]interface{}{"q": "asthma"}

	var first map[string]string
	err := c.fetch(ctx, "test/endpoint", params, &first, func(ctx context.Context) error {
		return getJSON(ctx, c.httpClient, server.URL, nil, nil, &first)
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	var second map[string]string
	err = c.fetch(ctx, "test/endpoint", params, &second, func(ctx context.Context) error {
		return getJSON(ctx, c.httpClient, server.URL, nil, nil, &second)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second call should be served from cache")
	assert.Equal(t, "fresh", second["value"])
}

func TestStatusError_Classification(t *testing.T) {
	tests := []struct {
		code      int
		wantErr   bool
		permanent bool
	}{
		{200, false, false},
		{204, false, false},
		{404, true, true},
		{422, true, true},
		{429, true, false},
		{500, true, false},
		{503, true, false},
	}

	for _, tt := range tests {
		err := statusError(tt.code)
		if !tt.wantErr {
			assert.NoError(t, err, "code %d", tt.code)
			continue
		}
		require.Error(t, err, "code %d", tt.code)

		// A permanent error aborts the retry loop after one attempt.
		policy := RetryPolicy{Attempts: 3, BaseInterval: time.Millisecond, MaxInterval: time.Millisecond}
		calls := 0
		policy.Do(context.Background(), func() error {
			calls++
			return statusError(tt.code)
		})
		if tt.permanent {
			assert.Equal(t, 1, calls, "code %d should not retry", tt.code)
		} else {
			assert.Equal(t, 3, calls, "code %d should retry", tt.code)
		}
	}
}
