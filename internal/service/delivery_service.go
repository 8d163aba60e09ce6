package service

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/metrics"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
	"github.com/prn-tf/amethyst-cdn/internal/storage"
	"github.com/prn-tf/amethyst-cdn/internal/throttle"
)

// OctetStream is the Content-Type of content without a resolvable type.
const OctetStream = "application/octet-stream"

// fileMarker is replaced by the escaped text in the highlighter page.
const fileMarker = "%FILE%"

//go:embed templates/highlighter.html
var highlighterTemplate string

// View names used for served-bytes metrics.
const (
	ViewRaw      = "raw"
	ViewRendered = "rendered"
)

// DeliveryService resolves and serves stored content to viewers.
type DeliveryService struct {
	namespaceRepo repository.NamespaceRepository
	contentRepo   repository.ContentRepository
	backend       storage.Backend
	throttle      *throttle.Group
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	escapeAll     bool
	now           func() time.Time
}

// DeliveryConfig contains delivery settings.
type DeliveryConfig struct {
	// EscapeAllHTML escapes every markup character of rendered text instead of
	// only the first occurrence of each.
	EscapeAllHTML bool
}

// NewDeliveryService creates a new DeliveryService.
func NewDeliveryService(
	namespaceRepo repository.NamespaceRepository,
	contentRepo repository.ContentRepository,
	backend storage.Backend,
	group *throttle.Group,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config DeliveryConfig,
) *DeliveryService {
	return &DeliveryService{
		namespaceRepo: namespaceRepo,
		contentRepo:   contentRepo,
		backend:       backend,
		throttle:      group,
		metrics:       m,
		logger:        logger.With().Str("service", "delivery").Logger(),
		escapeAll:     config.EscapeAllHTML,
		now:           time.Now,
	}
}

// Resolve returns the index entry of namespace/contentID when the namespace
// exists, the entry exists and has not expired, and its object is stored.
// Every other case is domain.ErrContentNotFound.
func (s *DeliveryService) Resolve(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error) {
	exists, err := s.namespaceRepo.Exists(ctx, namespace)
	if err != nil {
		s.logger.Error().Err(err).Str("namespace", namespace).Msg("failed to check namespace")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !exists {
		return nil, domain.ErrContentNotFound
	}

	entry, err := s.contentRepo.Get(ctx, namespace, contentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return nil, domain.ErrContentNotFound
		}
		s.logger.Error().Err(err).Str("key", domain.ContentKey(namespace, contentID)).Msg("failed to get content")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if entry.IsExpired(s.now()) {
		return nil, domain.ErrContentNotFound
	}

	stored, err := s.backend.Exists(ctx, storageKey(entry))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return nil, domain.ErrContentNotFound
		}
		s.logger.Error().Err(err).Str("key", entry.Key()).Msg("failed to stat content")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !stored {
		return nil, domain.ErrContentNotFound
	}

	return entry, nil
}

// ContentType returns the MIME type of the entry's original filename, or
// OctetStream when unresolved or when the uploader hinted binary.
func ContentType(entry *domain.ContentEntry) string {
	if entry.Type != nil && strings.EqualFold(strings.TrimSpace(*entry.Type), string(domain.KindBinary)) {
		return OctetStream
	}
	return ExtensionType(entry)
}

// ExtensionType returns the MIME type of the entry's original filename extension.
func ExtensionType(entry *domain.ContentEntry) string {
	if t := mime.TypeByExtension(path.Ext(entry.Upload.Name)); t != "" {
		return t
	}
	return OctetStream
}

// Stream opens the stored object and sends it to w with Send.
func (s *DeliveryService) Stream(ctx context.Context, w io.Writer, entry *domain.ContentEntry, view string) (int64, error) {
	rc, err := s.Open(ctx, entry)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	return s.Send(ctx, w, rc, entry, view)
}

// Send copies rc to w through the bandwidth throttle. It stops when ctx is done.
func (s *DeliveryService) Send(ctx context.Context, w io.Writer, rc io.Reader, entry *domain.ContentEntry, view string) (int64, error) {
	n, err := s.throttle.Copy(ctx, w, rc)
	s.metrics.AddBytesServed(view, n)
	if err != nil {
		s.logger.Debug().Err(err).Str("key", entry.Key()).Int64("sent", n).Msg("stream ended early")
		return n, err
	}
	return n, nil
}

// ReadAll returns the whole stored object.
func (s *DeliveryService) ReadAll(ctx context.Context, entry *domain.ContentEntry) ([]byte, error) {
	rc, err := s.Open(ctx, entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(storage.ContextReader(ctx, rc))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read content: %v", ErrInternalError, err)
	}
	return data, nil
}

// RenderText returns the highlighter page with the escaped object text.
func (s *DeliveryService) RenderText(ctx context.Context, entry *domain.ContentEntry) ([]byte, error) {
	data, err := s.ReadAll(ctx, entry)
	if err != nil {
		return nil, err
	}

	var text string
	if s.escapeAll {
		text = html.EscapeString(string(data))
	} else {
		text = EscapeFirst(string(data))
	}

	page := strings.Replace(highlighterTemplate, fileMarker, text, 1)
	s.metrics.AddBytesServed(ViewRendered, int64(len(page)))
	return []byte(page), nil
}

// firstEscapes lists the replacements applied once each, in order.
var firstEscapes = [][2]string{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&apos;"},
}

// EscapeFirst replaces only the first occurrence of each markup character.
// Later occurrences are left untouched.
func EscapeFirst(s string) string {
	for _, r := range firstEscapes {
		s = strings.Replace(s, r[0], r[1], 1)
	}
	return s
}

// Open returns a reader of the stored object.
func (s *DeliveryService) Open(ctx context.Context, entry *domain.ContentEntry) (io.ReadCloser, error) {
	rc, err := s.backend.Open(ctx, storageKey(entry))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrContentNotFound
		}
		s.logger.Error().Err(err).Str("key", entry.Key()).Msg("failed to open content")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return rc, nil
}

func storageKey(entry *domain.ContentEntry) storage.Key {
	return storage.Key{Namespace: entry.Namespace, ContentID: entry.ContentID}
}
