package catalog

import (
	"context"
	"time"

	"github.com/richxcame/pizzaguard/pkg/cache"
)

// CachedRepository serves products from Redis and falls back to the wrapped repository.
type CachedRepository struct {
	next  Repository
	cache *cache.Manager
	ttl   time.Duration
}

// NewCachedRepository wraps next with a read-through cache.
func NewCachedRepository(next Repository, c *cache.Manager, ttl time.Duration) *CachedRepository {
	return &CachedRepository{next: next, cache: c, ttl: ttl}
}

// GetProduct returns the cached product or loads and caches it.
func (r *CachedRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.cache.GetOrSet(ctx, cache.Keys.Product(id), r.ttl, &p, func() (interface{}, error) {
		return r.next.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
