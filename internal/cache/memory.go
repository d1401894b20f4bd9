package cache

import (
	"bytes"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps serialized candidates in process, backed by go-cache.
// Values are copied on the way in and out so callers can never alias a
// cached entry.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates a memory cache; expired entries are purged every cleanupInterval
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.items.Get(key)
	if !found {
		return nil, false
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(b), true
}

// Set stores value under key; ttl 0 uses the cache default
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len counts entries, including expired ones not yet purged
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
