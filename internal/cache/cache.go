package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/cardio-risk-server/internal/domain"
)

// AnalysisCache stores completed analyses keyed by document content so
// repeated submissions of the same report skip the extraction pipeline.
type AnalysisCache interface {
	// Get returns the cached analysis for a document hash, with a hit flag.
	Get(ctx context.Context, documentHash string) (*domain.Analysis, bool, error)
	// Set stores an analysis under a document hash. A zero ttl uses the
	// cache's default.
	Set(ctx context.Context, documentHash string, analysis *domain.Analysis, ttl time.Duration) error
	// Invalidate removes a cached analysis.
	Invalidate(ctx context.Context, documentHash string) error
	Close() error
}

// cachedAnalysis wraps a stored analysis with expiry metadata.
type cachedAnalysis struct {
	Analysis  *domain.Analysis `json:"analysis"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// DocumentKey derives a stable cache key from raw report text.
func DocumentKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", hash)
}

func analysisKey(documentHash string) string {
	return fmt.Sprintf("analysis:document:%s", documentHash)
}

// New builds a cache for the configured backend. The "none" backend
// returns a cache that never hits.
func New(cfg domain.CacheConfig) (AnalysisCache, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg)
	case "memory":
		return NewMemoryCache(cfg), nil
	case "none", "":
		return noopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// noopCache satisfies AnalysisCache without storing anything.
type noopCache struct{}

func (noopCache) Get(ctx context.Context, documentHash string) (*domain.Analysis, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(ctx context.Context, documentHash string, analysis *domain.Analysis, ttl time.Duration) error {
	return nil
}

func (noopCache) Invalidate(ctx context.Context, documentHash string) error { return nil }

func (noopCache) Close() error { return nil }
