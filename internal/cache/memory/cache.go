// Package memory provides an in-memory cache implementation.
// This is suitable for single-node deployments where Redis is not available.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// Cache implements repository.Cache over a size-bounded expiring LRU.
// This is NOT shared between instances.
type Cache struct {
	lru        *expirable.LRU[string, cacheItem]
	defaultTTL time.Duration
}

// cacheItem represents a single cached item.
// The LRU evicts on its own TTL; expiresAt enforces a shorter per-item TTL.
type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// isExpired checks if the item has expired.
func (i cacheItem) isExpired() bool {
	return time.Now().After(i.expiresAt)
}

// NewCache creates a new in-memory cache holding up to size entries for at most ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		lru:        expirable.NewLRU[string, cacheItem](size, nil, ttl),
		defaultTTL: ttl,
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	item, ok := c.lru.Get(key)
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	if item.isExpired() {
		c.lru.Remove(key)
		return nil, repository.ErrCacheMiss
	}

	// Return a copy to prevent mutation.
	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

// Set stores a value. A ttl of zero or above the cache TTL uses the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.defaultTTL {
		ttl = c.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.lru.Add(key, cacheItem{value: valueCopy, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of cached entries, expired ones included until evicted.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Ensure Cache implements repository.Cache.
var _ repository.Cache = (*Cache)(nil)
