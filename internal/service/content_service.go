package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/metrics"
	"github.com/prn-tf/amethyst-cdn/internal/pkg/crypto"
	"github.com/prn-tf/amethyst-cdn/internal/pkg/duration"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
)

// DefaultContentAttempts bounds content id generation when no limit is configured.
const DefaultContentAttempts = 8

// ContentService handles uploads and deletions.
type ContentService struct {
	contentRepo repository.ContentRepository
	backend     storage.Backend
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	attempts    int
	now         func() time.Time
}

// NewContentService creates a new ContentService.
func NewContentService(
	contentRepo repository.ContentRepository,
	backend storage.Backend,
	m *metrics.Metrics,
	logger zerolog.Logger,
	attempts int,
) *ContentService {
	if attempts <= 0 {
		attempts = DefaultContentAttempts
	}
	return &ContentService{
		contentRepo: contentRepo,
		backend:     backend,
		metrics:     m,
		logger:      logger.With().Str("service", "content").Logger(),
		attempts:    attempts,
		now:         time.Now,
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// UploadInput contains the data needed to store an upload.
type UploadInput struct {
	// Owner is the authenticated uploader.
	Owner *domain.User

	// File is the uploaded content. It is read more than once.
	File io.ReadSeeker

	// Filename is the name the client gave the file.
	Filename string

	// Name, Type and ExpireAfter are the optional form fields.
	Name        *string
	Type        *string
	ExpireAfter *string
}

// NameConflictError reports that a caller-chosen name is taken.
type NameConflictError struct {
	Name string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("ContentRejected: The requested name, '%s', already exists on the server. Please delete this key first before attempting to reuse this name.", e.Name)
}

// Unwrap lets errors.Is match domain.ErrContentAlreadyExists.
func (e *NameConflictError) Unwrap() error {
	return domain.ErrContentAlreadyExists
}

// =============================================================================
// Service Methods
// =============================================================================

// Upload stores the file under the owner's namespace and indexes it.
// The file is written before the index entry; a failed index write removes the file.
func (s *ContentService) Upload(ctx context.Context, input UploadInput) (*domain.ContentEntry, error) {
	if input.File == nil {
		return nil, ErrUploadMissing
	}

	checksum, _, err := crypto.ComputeStreamSHA256(input.File)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash upload: %v", ErrInternalError, err)
	}

	ext := path.Ext(path.Base(input.Filename))
	namespace := input.Owner.Namespace

	var (
		key  storage.Key
		size int64
	)
	if input.Name != nil {
		base := path.Base(*input.Name)
		contentID := strings.TrimSuffix(base, path.Ext(base)) + ext
		if err := domain.ValidateContentID(contentID); err != nil {
			return nil, err
		}

		key = storage.Key{Namespace: namespace, ContentID: contentID}
		size, err = s.create(ctx, key, input.File)
		if errors.Is(err, storage.ErrExists) {
			return nil, &NameConflictError{Name: *input.Name}
		}
		if err != nil {
			return nil, err
		}
	} else {
		key, size, err = s.createGenerated(ctx, namespace, ext, input.File)
		if err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	entry := &domain.ContentEntry{
		Namespace: namespace,
		ContentID: key.ContentID,
		Email:     input.Owner.Email,
		File:      s.backend.Location(key),
		Name:      input.Name,
		Type:      input.Type,
		Upload: domain.UploadDescriptor{
			Name:     input.Filename,
			Size:     size,
			Checksum: checksum,
		},
		CreatedAt: now.Truncate(time.Millisecond),
	}
	if input.ExpireAfter != nil {
		entry.Expire = duration.ExpiryFrom(*input.ExpireAfter, now)
	}

	if err := s.contentRepo.Put(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("key", entry.Key()).Msg("failed to index upload")
		if rmErr := s.backend.Remove(context.Background(), key); rmErr != nil {
			s.logger.Error().Err(rmErr).Str("key", entry.Key()).Msg("failed to remove unindexed upload")
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.metrics.ObserveUpload(size)
	s.logger.Info().
		Str("key", entry.Key()).
		Int64("size", size).
		Bool("expires", entry.Expire != nil).
		Msg("content uploaded")

	return entry, nil
}

// createGenerated tries random content ids until the backend accepts one.
func (s *ContentService) createGenerated(ctx context.Context, namespace, ext string, r io.ReadSeeker) (storage.Key, int64, error) {
	for attempt := 0; attempt < s.attempts; attempt++ {
		id, err := crypto.GenerateContentID()
		if err != nil {
			return storage.Key{}, 0, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		key := storage.Key{Namespace: namespace, ContentID: id + ext}
		size, err := s.create(ctx, key, r)
		if err == nil {
			return key, size, nil
		}
		if !errors.Is(err, storage.ErrExists) {
			return storage.Key{}, 0, err
		}
		s.logger.Debug().Str("key", key.String()).Int("attempt", attempt+1).Msg("content id collision")
	}

	s.metrics.IdentifierExhausted("content")
	s.logger.Error().Int("attempts", s.attempts).Str("namespace", namespace).Msg("content id space exhausted")
	return storage.Key{}, 0, fmt.Errorf("%w: content", ErrIdentifierExhausted)
}

// create rewinds r and writes it exclusively under key.
func (s *ContentService) create(ctx context.Context, key storage.Key, r io.ReadSeeker) (int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: failed to rewind upload: %v", ErrInternalError, err)
	}

	size, err := s.backend.Create(ctx, key, r)
	if err != nil {
		if errors.Is(err, storage.ErrExists) {
			return 0, storage.ErrExists
		}
		if errors.Is(err, storage.ErrInvalidKey) {
			return 0, domain.NewDomainError(domain.ErrInvalidContentID, "content id cannot be stored", key.ContentID)
		}
		s.logger.Error().Err(err).Str("key", key.String()).Msg("failed to store upload")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return size, nil
}

// Delete removes content from the owner's namespace and returns the removed entry.
// The stored file is removed best-effort; the index entry is always removed.
func (s *ContentService) Delete(ctx context.Context, owner *domain.User, contentID string) (*domain.ContentEntry, error) {
	entry, err := s.contentRepo.Get(ctx, owner.Namespace, contentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return nil, domain.ErrContentNotFound
		}
		s.logger.Error().Err(err).Str("content_id", contentID).Msg("failed to get content")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.backend.Remove(ctx, storage.Key{Namespace: entry.Namespace, ContentID: entry.ContentID}); err != nil {
		s.logger.Debug().Err(err).Str("key", entry.Key()).Msg("failed to remove stored content")
	}

	if err := s.contentRepo.Delete(ctx, entry.Namespace, entry.ContentID); err != nil {
		s.logger.Error().Err(err).Str("key", entry.Key()).Msg("failed to delete index entry")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("key", entry.Key()).Msg("content deleted")
	return entry, nil
}

// Inspect returns the index entry of a key without checking storage.
func (s *ContentService) Inspect(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error) {
	return s.contentRepo.Get(ctx, namespace, contentID)
}

// Count returns the number of indexed entries.
func (s *ContentService) Count(ctx context.Context) (int64, error) {
	return s.contentRepo.Count(ctx)
}
