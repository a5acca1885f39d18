package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"orthotracker/internal/ports"
)

// MemoryCache is a process-local cache. It suits single-process deployments
// such as the CLI dashboard.
type MemoryCache struct {
	store      *gocache.Cache
	defaultTTL time.Duration
}

var _ ports.Cache = (*MemoryCache)(nil)

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	expiration := defaultTTL
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	cleanup := 2 * defaultTTL
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryCache{
		store:      gocache.New(expiration, cleanup),
		defaultTTL: defaultTTL,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	raw, found := c.store.Get(trimmedKey)
	if !found {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, nil
	}
	return value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(trimmedKey, value, ttl)
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	c.store.Delete(trimmedKey)
	return nil
}
