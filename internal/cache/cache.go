// Package cache memoizes provider responses and geocoding results, either
// in process memory or in a shared Redis instance.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when no live entry exists for a key.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encodable values under string keys. A ttl of zero
// keeps the entry until it is evicted.
type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
