package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pitchlyapp/accounts-pitchly/domain"
)

const configCacheKey = "pitchly"

// CachedServiceConfigRepository is a read-through cache in front of the
// service configuration store. The configuration is consulted on every token
// refresh, so lookups are cached for a short TTL. Negative results are not
// cached: a missing configuration should become visible as soon as one is
// inserted.
type CachedServiceConfigRepository struct {
	inner domain.ServiceConfigRepository
	cache *ttlcache.Cache[string, *domain.ServiceConfig]
}

// NewCachedServiceConfigRepository wraps inner with a ttl-bounded cache.
func NewCachedServiceConfigRepository(inner domain.ServiceConfigRepository, ttl time.Duration) *CachedServiceConfigRepository {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.ServiceConfig](ttl),
		ttlcache.WithDisableTouchOnHit[string, *domain.ServiceConfig](),
	)
	go cache.Start()

	return &CachedServiceConfigRepository{inner: inner, cache: cache}
}

// GetServiceConfig implements domain.ServiceConfigRepository.
func (r *CachedServiceConfigRepository) GetServiceConfig(ctx context.Context) (*domain.ServiceConfig, error) {
	if item := r.cache.Get(configCacheKey); item != nil && !item.IsExpired() {
		return item.Value(), nil
	}

	cfg, err := r.inner.GetServiceConfig(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.Set(configCacheKey, cfg, ttlcache.DefaultTTL)
	return cfg, nil
}

// Invalidate drops the cached configuration.
func (r *CachedServiceConfigRepository) Invalidate() {
	r.cache.Delete(configCacheKey)
}

// Stop halts the background cleanup goroutine.
func (r *CachedServiceConfigRepository) Stop() {
	r.cache.Stop()
}

var _ domain.ServiceConfigRepository = (*CachedServiceConfigRepository)(nil)
