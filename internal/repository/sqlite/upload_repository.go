package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"s3-gallery/internal/domain"
	"s3-gallery/internal/repository"
)

const createUploadsTable = `
CREATE TABLE IF NOT EXISTS uploads (
	id TEXT PRIMARY KEY,
	object_key TEXT NOT NULL,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads (created_at);
`

const selectUpload = `
SELECT id, object_key, file_name, content_type, size, status, error_message, created_at, updated_at, completed_at
FROM uploads`

// ErrUploadNotFound is returned by Get for unknown ids.
var ErrUploadNotFound = errors.New("upload not found")

type UploadRepository struct {
	db *sql.DB
}

func NewUploadRepository(db *sql.DB) repository.UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUploadsTable); err != nil {
		return fmt.Errorf("create uploads table: %w", err)
	}
	return nil
}

func (r *UploadRepository) Create(ctx context.Context, upload *domain.Upload) error {
	now := time.Now().UTC()
	upload.CreatedAt = now
	upload.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO uploads (id, object_key, file_name, content_type, size, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		upload.ID,
		string(upload.Key),
		upload.FileName,
		upload.ContentType,
		upload.Size,
		string(upload.Status),
		upload.ErrorMessage,
		upload.CreatedAt,
		upload.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (r *UploadRepository) UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, errorMessage *string) error {
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE uploads
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update upload status: %w", err)
	}
	return nil
}

func (r *UploadRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE uploads
SET status=?, error_message='', completed_at=?, updated_at=?
WHERE id=?`,
		string(domain.UploadStatusCompleted),
		completedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

func (r *UploadRepository) Get(ctx context.Context, id string) (*domain.Upload, error) {
	row := r.db.QueryRowContext(ctx, selectUpload+` WHERE id=?`, id)
	return scanUpload(row)
}

// List returns the most recent uploads first. A non-positive limit returns all.
func (r *UploadRepository) List(ctx context.Context, limit int) ([]domain.Upload, error) {
	query := selectUpload + ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []domain.Upload{}
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *upload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return uploads, nil
}

func scanUpload(scanner interface {
	Scan(dest ...any) error
}) (*domain.Upload, error) {
	var (
		upload      domain.Upload
		key         string
		status      string
		createdAt   time.Time
		updatedAt   time.Time
		completedAt sql.NullTime
	)

	if err := scanner.Scan(
		&upload.ID,
		&key,
		&upload.FileName,
		&upload.ContentType,
		&upload.Size,
		&status,
		&upload.ErrorMessage,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("scan upload: %w", err)
	}

	upload.Key = domain.ObjectKey(key)
	upload.Status = domain.UploadStatus(status)
	upload.CreatedAt = createdAt.Local()
	upload.UpdatedAt = updatedAt.Local()
	if completedAt.Valid {
		t := completedAt.Time.Local()
		upload.CompletedAt = &t
	}
	return &upload, nil
}
