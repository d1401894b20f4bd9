package cache

import (
	"errors"
	"time"
)

// LayeredCache reads through an ordered list of tiers, fastest first.
// A hit in a slower tier is copied into every faster one.
type LayeredCache struct {
	tiers []Cache
}

// NewLayeredCache builds the memory-over-disk cache used when a disk directory is configured
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return Layered(
		NewMemoryCache(memoryTTL, cleanupInterval(memoryTTL)),
		NewDiskCache(diskDir, diskTTL),
	)
}

// Layered stacks tiers; nil tiers are skipped
func Layered(tiers ...Cache) *LayeredCache {
	c := &LayeredCache{}
	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

// Get returns the value from the fastest tier holding key
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, tier := range c.tiers {
		val, found := tier.Get(key)
		if !found {
			continue
		}
		// Promoted entries take each faster tier's default TTL
		for _, faster := range c.tiers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set writes key to every tier; it fails if any tier fails
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, tier := range c.tiers {
		errs = append(errs, tier.Set(key, value, ttl))
	}
	return errors.Join(errs...)
}

// Delete removes key from every tier
func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, tier := range c.tiers {
		errs = append(errs, tier.Delete(key))
	}
	return errors.Join(errs...)
}

// Clear empties every tier
func (c *LayeredCache) Clear() error {
	var errs []error
	for _, tier := range c.tiers {
		errs = append(errs, tier.Clear())
	}
	return errors.Join(errs...)
}
