package repository

import "errors"

// Cache errors returned by every repository.Cache implementation.
var (
	// ErrCacheMiss indicates the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the cache backend could not be reached.
	// The cached content repository falls through to the database on this error.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
