package postgres

import (
	"context"
	"fmt"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// namespaceRepository implements repository.NamespaceRepository for PostgreSQL.
type namespaceRepository struct {
	db *DB
}

// NewNamespaceRepository creates a new PostgreSQL namespace repository.
func NewNamespaceRepository(db *DB) repository.NamespaceRepository {
	return &namespaceRepository{db: db}
}

// Create inserts the namespace unless the id is already taken.
func (r *namespaceRepository) Create(ctx context.Context, ns *domain.Namespace) error {
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO namespaces (id, email, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		ns.ID, ns.Email, ns.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNamespaceAlreadyExists, ns.ID)
	}
	return nil
}

// Get retrieves a namespace by id.
func (r *namespaceRepository) Get(ctx context.Context, id string) (*domain.Namespace, error) {
	ns := &domain.Namespace{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, created_at FROM namespaces WHERE id = $1`, id,
	).Scan(&ns.ID, &ns.Email, &ns.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNamespaceNotFound
		}
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}
	ns.CreatedAt = ns.CreatedAt.UTC()
	return ns, nil
}

// Exists checks if a namespace id is taken.
func (r *namespaceRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM namespaces WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check namespace existence: %w", err)
	}
	return exists, nil
}

// Delete removes a namespace.
func (r *namespaceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM namespaces WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return nil
}

var _ repository.NamespaceRepository = (*namespaceRepository)(nil)
