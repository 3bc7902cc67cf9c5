package cache

import "time"

// Cache is the subset of Ristretto's API the guard needs; entries expire
// after their TTL or when evicted by cost.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache
	Get(key K) (V, bool)

	// SetWithTTL stores a value with cost and TTL, returning true if successful
	SetWithTTL(key K, value V, cost int64, ttl time.Duration) bool
}
