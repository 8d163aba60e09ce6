package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/amethyst-cdn/internal/domain"
	"github.com/prn-tf/amethyst-cdn/internal/repository"
)

// contentRepository implements repository.ContentRepository for SQLite.
type contentRepository struct {
	db *DB
}

// NewContentRepository creates a new SQLite content index repository.
func NewContentRepository(db *DB) repository.ContentRepository {
	return &contentRepository{db: db}
}

const contentColumns = `namespace, content_id, email, file, name, type,
	upload_name, upload_size, upload_checksum, expire_at, created_at`

// Put inserts or replaces the entry under its key.
func (r *contentRepository) Put(ctx context.Context, entry *domain.ContentEntry) error {
	query := `
		INSERT INTO contents (key, ` + contentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			email = excluded.email,
			file = excluded.file,
			name = excluded.name,
			type = excluded.type,
			upload_name = excluded.upload_name,
			upload_size = excluded.upload_size,
			upload_checksum = excluded.upload_checksum,
			expire_at = excluded.expire_at,
			created_at = excluded.created_at
	`

	var expireAt sql.NullString
	if entry.Expire != nil {
		expireAt = sql.NullString{String: formatTime(*entry.Expire), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.Key(),
		entry.Namespace,
		entry.ContentID,
		entry.Email,
		entry.File,
		nullString(entry.Name),
		nullString(entry.Type),
		entry.Upload.Name,
		entry.Upload.Size,
		entry.Upload.Checksum,
		expireAt,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put content entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by namespace and content id.
func (r *contentRepository) Get(ctx context.Context, namespace, contentID string) (*domain.ContentEntry, error) {
	query := `SELECT ` + contentColumns + ` FROM contents WHERE key = ?`

	entry, err := scanContent(r.db.QueryRowContext(ctx, query, domain.ContentKey(namespace, contentID)))
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
	_, err := r.db.ExecContext(ctx, `DELETE FROM contents WHERE key = ?`, domain.ContentKey(namespace, contentID))
	if err != nil {
		return fmt.Errorf("failed to delete content entry: %w", err)
	}
	return nil
}

// Count returns the number of indexed entries.
func (r *contentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count content entries: %w", err)
	}
	return count, nil
}

// ListExpired returns entries due before the given time, oldest expiry first.
// Served by the partial index on expire_at.
func (r *contentRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.ContentEntry, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM contents
		WHERE expire_at IS NOT NULL AND expire_at < ?
		ORDER BY expire_at
		LIMIT ?
	`
	return r.list(ctx, query, formatTime(before), limit)
}

// ListAfter returns entries with a key greater than afterKey, ordered by key.
func (r *contentRepository) ListAfter(ctx context.Context, afterKey string, limit int) ([]*domain.ContentEntry, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM contents
		WHERE key > ?
		ORDER BY key
		LIMIT ?
	`
	return r.list(ctx, query, afterKey, limit)
}

func (r *contentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.ContentEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func scanContent(s scanner) (*domain.ContentEntry, error) {
	entry := &domain.ContentEntry{}
	var name, typ, expireAt sql.NullString
	var createdAt string

	err := s.Scan(
		&entry.Namespace,
		&entry.ContentID,
		&entry.Email,
		&entry.File,
		&name,
		&typ,
		&entry.Upload.Name,
		&entry.Upload.Size,
		&entry.Upload.Checksum,
		&expireAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if name.Valid {
		entry.Name = &name.String
	}
	if typ.Valid {
		entry.Type = &typ.String
	}
	if expireAt.Valid {
		t := parseTime(expireAt.String)
		entry.Expire = &t
	}
	entry.CreatedAt = parseTime(createdAt)
	return entry, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Ensure contentRepository implements repository.ContentRepository.
var _ repository.ContentRepository = (*contentRepository)(nil)
