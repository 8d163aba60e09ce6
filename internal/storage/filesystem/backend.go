// Package filesystem implements storage.Backend on the local filesystem.
// Objects live at <data_dir>/namespace/<namespace>/<content_id>.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/prn-tf/amethyst-cdn/internal/storage"
)

// Backend stores content as plain files.
type Backend struct {
	basePath string
	logger   zerolog.Logger
}

// NewBackend creates a filesystem backend rooted at basePath.
func NewBackend(basePath string, logger zerolog.Logger) (*Backend, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, storage.RootDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info().Str("path", abs).Msg("filesystem storage ready")

	return &Backend{
		basePath: abs,
		logger:   logger.With().Str("component", "filesystem_storage").Logger(),
	}, nil
}

// Create writes r to a temporary file and links it into place.
// The link fails when the target exists, so readers never observe a partial file
// and two uploads can never claim the same name.
func (b *Backend) Create(ctx context.Context, key storage.Key, r io.Reader) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	target := storage.ComputePath(b.basePath, key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	if _, err := os.Lstat(target); err == nil {
		return 0, storage.ErrExists
	}

	tmp, err := os.CreateTemp(dir, ".upload-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, storage.ContextReader(ctx, r))
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Link(tmpPath, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, storage.ErrExists
		}
		return 0, fmt.Errorf("failed to publish content: %w", err)
	}

	b.logger.Debug().Str("key", key.String()).Int64("size", n).Msg("stored content")
	return n, nil
}

// Open returns the stored file.
func (b *Backend) Open(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(storage.ComputePath(b.basePath, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

// Stat returns the size of the stored file.
func (b *Backend) Stat(ctx context.Context, key storage.Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	info, err := os.Stat(storage.ComputePath(b.basePath, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}
	if info.IsDir() {
		return 0, storage.ErrNotFound
	}
	return info.Size(), nil
}

// Exists checks if a file is stored under key.
func (b *Backend) Exists(ctx context.Context, key storage.Key) (bool, error) {
	_, err := b.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Remove deletes the stored file. A missing file is not an error.
func (b *Backend) Remove(ctx context.Context, key storage.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	err := os.Remove(storage.ComputePath(b.basePath, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove content: %w", err)
	}
	return nil
}

// Location returns the absolute path of key.
func (b *Backend) Location(key storage.Key) string {
	return storage.ComputePath(b.basePath, key)
}

var _ storage.Backend = (*Backend)(nil)
