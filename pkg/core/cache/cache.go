package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// Cache is a thread-safe, size-bounded LRU cache. Concurrent GetOrSet calls
// for the same missing key share a single computation.
type Cache struct {
	items *lru.Cache
	group singleflight.Group

	// Metrics
	hits   atomic.Int64
	misses atomic.Int64
}

// Config holds cache configuration
type Config struct {
	MaxItems int
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{MaxItems: 512}
}

// New creates a new cache instance
func New(cfg Config) *Cache {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultConfig().MaxItems
	}
	// lru.New only fails for a non-positive size
	items, _ := lru.New(cfg.MaxItems)
	return &Cache{items: items}
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) (interface{}, bool) {
	val, ok := c.items.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return val, true
}

// Set stores a value, evicting the least recently used entry when full
func (c *Cache) Set(key string, value interface{}) {
	c.items.Add(key, value)
}

// Delete removes a value from the cache
func (c *Cache) Delete(key string) {
	c.items.Remove(key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.items.Purge()
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	return c.items.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() (hits, misses int64, hitRate float64) {
	hits = c.hits.Load()
	misses = c.misses.Load()
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return
}

// GetOrSet returns the cached value for key or computes, stores and returns
// it. Errors are not cached.
func (c *Cache) GetOrSet(key string, fn func() (interface{}, error)) (interface{}, error) {
	if val, ok := c.Get(key); ok {
		return val, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have stored the value meanwhile
		if val, ok := c.items.Get(key); ok {
			return val, nil
		}
		val, err := fn()
		if err != nil {
			return nil, err
		}
		c.items.Add(key, val)
		return val, nil
	})
	return val, err
}
