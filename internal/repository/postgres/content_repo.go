package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// contentRepository implements repository.ContentRepository for PostgreSQL.
type contentRepository struct {
	db *DB
}

// NewContentRepository creates a new PostgreSQL content index repository.
func NewContentRepository(db *DB) repository.ContentRepository {
	return &contentRepository{db: db}
}

const contentColumns = `namespace, content_id, email, file, name, type,
	upload_name, upload_size, upload_checksum, expire_at, created_at`

// Put inserts or replaces the entry under its key.
func (r *contentRepository) Put(ctx context.Context, entry *domain.ContentEntry) error {
	query := `
		INSERT INTO contents (key, ` + contentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (key) DO UPDATE SET
			email = EXCLUDED.email,
			file = EXCLUDED.file,
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			upload_name = EXCLUDED.upload_name,
			upload_size = EXCLUDED.upload_size,
			upload_checksum = EXCLUDED.upload_checksum,
			expire_at = EXCLUDED.expire_at,
			created_at = EXCLUDED.created_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.Key(),
		entry.Namespace,
		entry.ContentID,
		entry.Email,
		entry.File,
		entry.Name,
		entry.Type,
		entry.Upload.Name,
		entry.Upload.Size,
		entry.Upload.Checksum,
		entry.Expire,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put content entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by namespace and content id.
func (r *contentRepository) Get(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE key = $1`,
		domain.ContentKey(namespace, contentID),
	)

	entry, err := scanContent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content entry: %w", err)
	}
	return entry, nil
}

// Delete removes an entry.
func (r *contentRepository) Delete(ctx context.Context, namespace, contentID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM contents WHERE key = $1`, domain.ContentKey(namespace, contentID))
	if err != nil {
		return fmt.Errorf("failed to delete content entry: %w", err)
	}
	return nil
}

// Count returns the number of indexed entries.
func (r *contentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM contents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count content entries: %w", err)
	}
	return count, nil
}

// ListExpired returns entries due before the given time, oldest expiry first.
func (r *contentRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.ContentEntry, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM contents
		WHERE expire_at IS NOT NULL AND expire_at < $1
		ORDER BY expire_at
		LIMIT $2
	`
	return r.list(ctx, query, before, limit)
}

// ListAfter returns entries with a key greater than afterKey, ordered by key.
func (r *contentRepository) ListAfter(ctx context.Context, afterKey string, limit int) ([]*domain.ContentEntry, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM contents
		WHERE key > $1
		ORDER BY key
		LIMIT $2
	`
	return r.list(ctx, query, afterKey, limit)
}

func (r *contentRepository) list(ctx context.Context, query string, args ...any) ([]*domain.ContentEntry, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ContentEntry
	for rows.Next() {
		entry, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content entries: %w", err)
	}
	return entries, nil
}

func scanContent(row pgx.Row) (*domain.ContentEntry, error) {
	entry := &domain.ContentEntry{}
	err := row.Scan(
		&entry.Namespace,
		&entry.ContentID,
		&entry.Email,
		&entry.File,
		&entry.Name,
		&entry.Type,
		&entry.Upload.Name,
		&entry.Upload.Size,
		&entry.Upload.Checksum,
		&entry.Expire,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entry.Expire != nil {
		t := entry.Expire.UTC()
		entry.Expire = &t
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

var _ repository.ContentRepository = (*contentRepository)(nil)
