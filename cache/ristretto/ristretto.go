package ristretto

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Key is the subset of ristretto key types that are also comparable.
type Key interface {
	uint64 | string | int | int32 | uint32 | int64
}

type Cache[K Key, V any] struct {
	cache *ristretto.Cache[K, V]
}

func (rc *Cache[K, V]) Get(key K) (V, bool) {
	return rc.cache.Get(key)
}

func (rc *Cache[K, V]) SetWithTTL(key K, value V, cost int64, ttl time.Duration) bool {
	return rc.cache.SetWithTTL(key, value, cost, ttl)
}

// Wait blocks until buffered writes are applied.
func (rc *Cache[K, V]) Wait() {
	rc.cache.Wait()
}

func (rc *Cache[K, V]) Close() {
	rc.cache.Close()
}

// New creates a cache tracking the frequency of numCounters keys and
// holding at most maxCost total cost.
func New[K Key, V any](numCounters, maxCost int64) (*Cache[K, V], error) {
	if numCounters <= 0 || maxCost <= 0 {
		return nil, fmt.Errorf("ristretto: numCounters and maxCost must be positive, got %d and %d", numCounters, maxCost)
	}
	c, err := ristretto.NewCache(&ristretto.Config[K, V]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{cache: c}, nil
}
