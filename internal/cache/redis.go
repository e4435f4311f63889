package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardio-risk-server/internal/domain"
)

// RedisCache backs the analysis cache with a shared Redis instance so
// multiple server replicas can reuse each other's results.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis using the configured URL and pool settings.
func NewRedisCache(cfg domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		redis:      client,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// Get retrieves a cached analysis. Corrupted or expired entries are
// removed and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, documentHash string) (*domain.Analysis, bool, error) {
	key := analysisKey(documentHash)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached analysis: %w", err)
	}

	var cached cachedAnalysis
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Analysis, true, nil
}

// Set stores an analysis under the document hash.
func (c *RedisCache) Set(ctx context.Context, documentHash string, analysis *domain.Analysis, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedAnalysis{
		Analysis:  analysis,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached analysis: %w", err)
	}

	return c.redis.Set(ctx, analysisKey(documentHash), jsonData, ttl).Err()
}

// Invalidate removes the cached analysis for a document hash.
func (c *RedisCache) Invalidate(ctx context.Context, documentHash string) error {
	return c.redis.Del(ctx, analysisKey(documentHash)).Err()
}

// Ping checks if the Redis connection is alive.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
