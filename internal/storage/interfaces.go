// Package storage defines interfaces for content storage backends.
// The storage layer is responsible for persisting and retrieving the raw bytes
// of uploaded content. The content index lives in the repository layer.
package storage

import (
	"context"
	"errors"
	"io"
)

// Storage errors
var (
	// ErrNotFound indicates no object is stored under the key.
	ErrNotFound = errors.New("storage: object not found")

	// ErrExists indicates an object is already stored under the key.
	ErrExists = errors.New("storage: object already exists")

	// ErrInvalidKey indicates a key segment cannot be used as a path element.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Backend defines the interface for storage backends.
// Implementations include the local filesystem and S3-compatible object stores.
type Backend interface {
	// Create stores the content of r under key and returns the number of bytes written.
	// Creation is exclusive: if the key already holds an object, nothing is
	// written and ErrExists is returned.
	Create(ctx context.Context, key Key, r io.Reader) (int64, error)

	// Open returns a stream of the stored object. The caller must close it.
	// Returns ErrNotFound if the object doesn't exist.
	Open(ctx context.Context, key Key) (io.ReadCloser, error)

	// Stat returns the size of the stored object.
	// Returns ErrNotFound if the object doesn't exist.
	Stat(ctx context.Context, key Key) (int64, error)

	// Exists checks if an object is stored under key.
	Exists(ctx context.Context, key Key) (bool, error)

	// Remove deletes the object. Removing a missing object is not an error.
	Remove(ctx context.Context, key Key) error

	// Location returns a human-readable location of the object,
	// an absolute path for the filesystem or s3://bucket/key for S3.
	Location(key Key) string
}
