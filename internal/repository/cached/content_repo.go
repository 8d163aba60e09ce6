// Package cached wraps repositories with a read-through cache.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// contentRepository caches Get lookups of the content index.
// Writes and deletes go to the underlying repository first and then drop the cached key.
type contentRepository struct {
	repository.ContentRepository
	cache  repository.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewContentRepository decorates next with cache.
func NewContentRepository(next repository.ContentRepository, cache repository.Cache, ttl time.Duration, logger zerolog.Logger) repository.ContentRepository {
	return &contentRepository{
		ContentRepository: next,
		cache:             cache,
		ttl:               ttl,
		logger:            logger.With().Str("component", "content_cache").Logger(),
	}
}

// Get returns the cached entry or loads and caches it.
// Cache failures fall back to the underlying repository.
func (r *contentRepository) Get(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error) {
	key := repository.CacheKeys.Content(namespace, contentID)

	data, err := r.cache.Get(ctx, key)
	if err == nil {
		var entry domain.ContentEntry
		if jsonErr := json.Unmarshal(data, &entry); jsonErr == nil {
			return &entry, nil
		}
		_ = r.cache.Delete(ctx, key)
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	entry, err := r.ContentRepository.Get(ctx, namespace, contentID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entry); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return entry, nil
}

// Put writes the entry and invalidates its cached copy.
func (r *contentRepository) Put(ctx context.Context, entry *domain.ContentEntry) error {
	if err := r.ContentRepository.Put(ctx, entry); err != nil {
		return err
	}
	r.invalidate(ctx, entry.Namespace, entry.ContentID)
	return nil
}

// Delete removes the entry and invalidates its cached copy.
func (r *contentRepository) Delete(ctx context.Context, namespace, contentID string) error {
	if err := r.ContentRepository.Delete(ctx, namespace, contentID); err != nil {
		return err
	}
	r.invalidate(ctx, namespace, contentID)
	return nil
}

func (r *contentRepository) invalidate(ctx context.Context, namespace, contentID string) {
	key := repository.CacheKeys.Content(namespace, contentID)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

var _ repository.ContentRepository = (*contentRepository)(nil)
