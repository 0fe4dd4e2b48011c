package weather

import (
	"time"

	"github.com/maypok86/otter/v2"
)

const cacheCapacity = 10_000

// Cache is a bounded key-value cache. A zero ttl keeps entries until they
// are evicted by size.
type Cache[V any] struct {
	c *otter.Cache[string, V]
}

func NewCache[V any](ttl time.Duration) *Cache[V] {
	opts := &otter.Options[string, V]{
		MaximumSize: cacheCapacity,
	}
	if ttl > 0 {
		opts.ExpiryCalculator = otter.ExpiryWriting[string, V](ttl)
	}
	return &Cache[V]{c: otter.Must(opts)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.c.GetIfPresent(key)
}

func (c *Cache[V]) Set(key string, value V) {
	c.c.Set(key, value)
}

func (c *Cache[V]) Delete(key string) {
	c.c.Invalidate(key)
}
