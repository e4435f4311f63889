package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cardio-risk-server/internal/domain"
)

// MemoryCache keeps analyses in an in-process LRU. Suitable for single
// instance deployments where Redis is not available.
type MemoryCache struct {
	lru        *expirable.LRU[string, cachedAnalysis]
	defaultTTL time.Duration
}

// NewMemoryCache builds an LRU-backed cache sized and expired per config.
func NewMemoryCache(cfg domain.CacheConfig) *MemoryCache {
	size := cfg.MemorySize
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		lru:        expirable.NewLRU[string, cachedAnalysis](size, nil, cfg.DefaultTTL),
		defaultTTL: cfg.DefaultTTL,
	}
}

// Get returns the cached analysis for a document hash. Entries past
// their recorded expiry are evicted and reported as a miss.
func (c *MemoryCache) Get(ctx context.Context, documentHash string) (*domain.Analysis, bool, error) {
	key := analysisKey(documentHash)

	cached, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}

	return cached.Analysis, true, nil
}

// Set stores an analysis under the document hash.
func (c *MemoryCache) Set(ctx context.Context, documentHash string, analysis *domain.Analysis, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.lru.Add(analysisKey(documentHash), cachedAnalysis{
		Analysis:  analysis,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Invalidate removes the cached analysis for a document hash.
func (c *MemoryCache) Invalidate(ctx context.Context, documentHash string) error {
	c.lru.Remove(analysisKey(documentHash))
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close releases the LRU contents.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
