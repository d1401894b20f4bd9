// Package cache stores serialized extraction candidates between reconciliations.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/factgate/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from its parts (provider, claim, run filter)
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "factgate:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg, or nil when caching is disabled.
// Without a disk directory only the memory layer is used.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.DiskDir == "" {
		return NewMemoryCache(cfg.MemoryTTL, cleanupInterval(cfg.MemoryTTL))
	}
	return NewLayeredCache(cfg.MemoryTTL, cfg.DiskDir, cfg.DiskTTL)
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 10*time.Minute {
		return 10 * time.Minute
	}
	return ttl
}
