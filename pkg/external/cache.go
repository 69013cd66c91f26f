package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// ResponseCache is the content-addressed cache every external call routes
// through. The durable tier is one file per key under the cache directory;
// an optional Redis hot tier sits in front of it. Reads are advisory and
// writes are best-effort: cache failures never fail a call.
type ResponseCache struct {
	dir      string
	redis    *redis.Client
	redisTTL time.Duration
	logger   *logrus.Logger
}

// cacheEnvelope wraps the stored payload
type cacheEnvelope struct {
	Data     json.RawMessage `json:"data"`
	CachedAt time.Time       `json:"cached_at"`
}

// NewResponseCache creates a response cache rooted at the configured
// directory. A Redis URL, when set, enables the hot tier; a Redis that is
// unreachable at startup is an error because it was explicitly configured.
func NewResponseCache(config domain.CacheConfig, logger *logrus.Logger) (*ResponseCache, error) {
	if err := os.MkdirAll(config.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &ResponseCache{
		dir:      config.Directory,
		redisTTL: config.RedisTTL,
		logger:   logger,
	}

	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts.MaxRetries = config.MaxRetries
		opts.PoolSize = config.PoolSize

		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.redis = client
	}

	return c, nil
}

// CacheKey derives the content address for an endpoint and its parameters.
// Parameters are serialized as a key-sorted JSON object, so insertion order
// never changes the key.
func CacheKey(endpoint string, params map[string]interface{}) string {
	payload := struct {
		Endpoint string                 `json:"endpoint"`
		Params   map[string]interface{} `json:"params"`
	}{Endpoint: endpoint, Params: params}

	// encoding/json sorts map keys, which gives the canonical encoding
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(endpoint)
	}
	hash := sha256.Sum256(encoded)
	return fmt.Sprintf("%x", hash[:16])
}

// Get retrieves a cached payload. The second return value reports a hit;
// any read error is treated as a miss.
func (c *ResponseCache) Get(ctx context.Context, endpoint string, params map[string]interface{}) (json.RawMessage, bool) {
	key := CacheKey(endpoint, params)

	if c.redis != nil {
		val, err := c.redis.Get(ctx, "repurpose:"+key).Result()
		if err == nil {
			var env cacheEnvelope
			if err := json.Unmarshal([]byte(val), &env); err == nil {
				return env.Data, true
			}
			c.redis.Del(ctx, "repurpose:"+key)
		}
	}

	raw, err := os.ReadFile(c.filePath(key))
	if err != nil {
		return nil, false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.WithFields(logrus.Fields{"endpoint": endpoint, "key": key}).
			Warn("Corrupted cache entry, ignoring")
		return nil, false
	}

	c.logger.WithField("endpoint", endpoint).Debug("Cache hit")
	return env.Data, true
}

// Put stores a payload under the content address of the call. Persistence
// errors are logged, never raised.
func (c *ResponseCache) Put(ctx context.Context, endpoint string, params map[string]interface{}, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("Cache marshal failed")
		return
	}

	key := CacheKey(endpoint, params)
	env := cacheEnvelope{Data: data, CachedAt: time.Now()}

	encoded, err := json.Marshal(env)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("Cache marshal failed")
		return
	}

	if err := os.WriteFile(c.filePath(key), encoded, 0o644); err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("Cache write failed")
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, "repurpose:"+key, encoded, c.redisTTL).Err(); err != nil {
			c.logger.WithError(err).WithField("endpoint", endpoint).Warn("Redis cache write failed")
		}
	}
}

// GetInto unmarshals a cached payload into out; returns false on miss or
// decode failure.
func (c *ResponseCache) GetInto(ctx context.Context, endpoint string, params map[string]interface{}, out interface{}) bool {
	raw, ok := c.Get(ctx, endpoint, params)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("Cache decode failed")
		return false
	}
	return true
}

// Close releases the Redis connection if the hot tier is configured
func (c *ResponseCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func (c *ResponseCache) filePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
