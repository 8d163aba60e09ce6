// Package repository defines data access interfaces for the Amethyst CDN.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	// Returns domain.ErrUserAlreadyExists if the email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdateToken replaces the stored token of a user.
	UpdateToken(ctx context.Context, email, token string) error

	// Count returns the number of registered users.
	Count(ctx context.Context) (int64, error)

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)
}

// =============================================================================
// Namespace Repository
// =============================================================================

// NamespaceRepository defines the interface for namespace data access.
type NamespaceRepository interface {
	// Create inserts the namespace only if its id is free.
	// Returns domain.ErrNamespaceAlreadyExists otherwise; the check and the write are one statement.
	Create(ctx context.Context, ns *domain.Namespace) error

	// Get retrieves a namespace by id.
	Get(ctx context.Context, id string) (*domain.Namespace, error)

	// Exists checks if a namespace id is taken.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes a namespace. Used to undo a failed registration.
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// Content Repository
// =============================================================================

// ContentRepository defines the interface for the content index.
type ContentRepository interface {
	// Put inserts or replaces the entry under its key.
	Put(ctx context.Context, entry *domain.ContentEntry) error

	// Get retrieves an entry by namespace and content id.
	Get(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error)

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, namespace, contentID string) error

	// Count returns the number of indexed entries.
	Count(ctx context.Context) (int64, error)

	// ListExpired returns up to limit entries whose expiry is strictly before
	// the given time, oldest expiry first. Entries without expiry are never returned.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.ContentEntry, error)

	// ListAfter returns up to limit entries with a key greater than afterKey,
	// ordered by key. An empty afterKey starts from the beginning.
	ListAfter(ctx context.Context, afterKey string, limit int) ([]*domain.ContentEntry, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}
