package ports

import (
	"context"
	"time"
)

// Cache is a string key-value store used for derived read models such as
// dashboard KPIs. A zero ttl means the adapter default.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
