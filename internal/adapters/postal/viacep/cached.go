package viacep

import (
	"context"
	"time"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
	"3tcapital/ms_fiscal_core/internal/core/postal"
	"3tcapital/ms_fiscal_core/internal/infrastructure/cache"
)

// CachedService memoizes successful lookups. Misses and failures are not
// cached, so a CEP added to the directory later is picked up.
type CachedService struct {
	inner postal.Service
	cache *cache.TTLCache[string, postal.Location]
}

// NewCachedService wraps inner with a TTL cache. A non-positive ttl disables caching.
func NewCachedService(inner postal.Service, ttl time.Duration) postal.Service {
	if ttl <= 0 {
		return inner
	}
	return &CachedService{
		inner: inner,
		cache: cache.NewTTLCache[string, postal.Location](ttl),
	}
}

// Lookup implements postal.Service.
func (s *CachedService) Lookup(ctx context.Context, postalCode string) (*postal.Location, error) {
	key := fiscal.Digits(postalCode)
	if loc, ok := s.cache.Get(key); ok {
		return &loc, nil
	}

	loc, err := s.inner.Lookup(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, *loc)
	return loc, nil
}
