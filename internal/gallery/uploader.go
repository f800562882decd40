package gallery

import (
	"context"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"s3-gallery/internal/domain"
	"s3-gallery/internal/repository"
	"s3-gallery/internal/storage"
)

const defaultContentType = "application/octet-stream"

type UploaderConfig struct {
	// Now is the clock used to derive object keys.
	Now func() time.Time
	// Journal records upload attempts. Optional.
	Journal repository.UploadRepository
	Logger  *logrus.Logger
}

// Uploader writes selected files to the bucket under time-derived keys.
type Uploader struct {
	session storage.Session
	cfg     UploaderConfig
}

func NewUploader(session storage.Session, cfg UploaderConfig) *Uploader {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Uploader{session: session, cfg: cfg}
}

// Upload writes file under a fresh key and returns it. A nil file is a no-op.
// Progress, when non-nil, is driven to a terminal event. Failed uploads are
// not retried.
func (u *Uploader) Upload(ctx context.Context, file *domain.LocalFile, progress *ProgressStream) (domain.ObjectKey, error) {
	if file == nil {
		return "", nil
	}
	if progress == nil {
		progress = NewProgressStream(file.Size)
	}

	key := domain.NewObjectKey(u.cfg.Now(), file.Name)
	contentType := u.contentType(file)
	logger := u.cfg.Logger.WithField("key", key)

	record := &domain.Upload{
		ID:          uuid.NewString(),
		Key:         key,
		FileName:    file.Name,
		ContentType: contentType,
		Size:        file.Size,
		Status:      domain.UploadStatusPending,
	}
	u.journalCreate(ctx, logger, record)
	logger = logger.WithField("upload_id", record.ID)

	fail := func(err error) (domain.ObjectKey, error) {
		uerr := &UploadError{Key: key, Err: err}
		progress.Fail(uerr)
		u.journalFail(ctx, logger, record.ID, uerr)
		logger.Errorf("upload failed: %v", err)
		return "", uerr
	}

	body, err := file.Open()
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	u.journalStatus(ctx, logger, record.ID, domain.UploadStatusUploading)
	logger.Infof("upload started (%d bytes, %s)", file.Size, contentType)

	progress.Report(0, file.Size)
	err = u.session.PutObject(ctx, key, body, file.Size, contentType, progress.Report)
	if err != nil {
		return fail(err)
	}

	progress.Complete()
	if u.cfg.Journal != nil {
		if err := u.cfg.Journal.MarkCompleted(ctx, record.ID, u.cfg.Now()); err != nil {
			logger.Warnf("journal mark completed: %v", err)
		}
	}
	logger.Info("upload completed")
	return key, nil
}

func (u *Uploader) contentType(file *domain.LocalFile) string {
	if file.ContentType != "" {
		return file.ContentType
	}
	if file.Path != "" {
		if mt, err := mimetype.DetectFile(file.Path); err == nil {
			return mt.String()
		}
	}
	return defaultContentType
}

func (u *Uploader) journalCreate(ctx context.Context, logger *logrus.Entry, record *domain.Upload) {
	if u.cfg.Journal == nil {
		return
	}
	if err := u.cfg.Journal.Create(ctx, record); err != nil {
		logger.Warnf("journal create: %v", err)
	}
}

func (u *Uploader) journalStatus(ctx context.Context, logger *logrus.Entry, id string, status domain.UploadStatus) {
	if u.cfg.Journal == nil {
		return
	}
	if err := u.cfg.Journal.UpdateStatus(ctx, id, status, nil); err != nil {
		logger.Warnf("journal update status: %v", err)
	}
}

func (u *Uploader) journalFail(ctx context.Context, logger *logrus.Entry, id string, failErr error) {
	if u.cfg.Journal == nil {
		return
	}
	msg := failErr.Error()
	// The upload context may already be cancelled; the record should still land.
	if err := u.cfg.Journal.UpdateStatus(context.WithoutCancel(ctx), id, domain.UploadStatusFailed, &msg); err != nil {
		logger.Warnf("journal update status: %v", err)
	}
}
