package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// namespaceRepository implements repository.NamespaceRepository for SQLite.
type namespaceRepository struct {
	db *DB
}

// NewNamespaceRepository creates a new SQLite namespace repository.
func NewNamespaceRepository(db *DB) repository.NamespaceRepository {
	return &namespaceRepository{db: db}
}

// Create inserts the namespace unless the id is already taken.
func (r *namespaceRepository) Create(ctx context.Context, ns *domain.Namespace) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO namespaces (id, email, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		ns.ID, ns.Email, formatTime(ns.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNamespaceAlreadyExists, ns.ID)
	}
	return nil
}

// Get retrieves a namespace by id.
func (r *namespaceRepository) Get(ctx context.Context, id string) (*domain.Namespace, error) {
	ns := &domain.Namespace{}
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM namespaces WHERE id = ?`, id,
	).Scan(&ns.ID, &ns.Email, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNamespaceNotFound
		}
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}

	ns.CreatedAt = parseTime(createdAt)
	return ns, nil
}

// Exists checks if a namespace id is taken.
func (r *namespaceRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM namespaces WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check namespace existence: %w", err)
	}
	return exists != 0, nil
}

// Delete removes a namespace.
func (r *namespaceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM namespaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return nil
}

// Ensure namespaceRepository implements repository.NamespaceRepository.
var _ repository.NamespaceRepository = (*namespaceRepository)(nil)
