package repository

import (
	"context"
	"time"

	"s3-gallery/internal/domain"
)

// UploadRepository persists the history of upload attempts.
type UploadRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, upload *domain.Upload) error
	UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, errorMessage *string) error
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
	Get(ctx context.Context, id string) (*domain.Upload, error)
	List(ctx context.Context, limit int) ([]domain.Upload, error)
}
