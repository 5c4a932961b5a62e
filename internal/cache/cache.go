// Package cache provides TTL key/value caches shared by the price resolver
// and the wallet filter.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-valued cache with per-entry TTL. Expired entries are never
// returned.
type Cache interface {
	// Get returns the value and true on hit, or nil and false on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
