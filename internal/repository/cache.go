package repository

import (
	"context"
	"time"
)

// =============================================================================
// Cache Interface
// =============================================================================

// Cache defines the interface for caching operations.
// Implemented in-process with an expiring LRU or in Redis for shared deployments.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the cache default applies.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKeys generates cache keys for common scenarios.
var CacheKeys = cacheKeys{}

type cacheKeys struct{}

// Content returns the cache key of a content index entry.
func (cacheKeys) Content(namespace, contentID string) string {
	return "cache:content:" + namespace + "/" + contentID
}
