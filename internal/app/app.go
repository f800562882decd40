// Package app assembles the gallery components from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"s3-gallery/internal/config"
	"s3-gallery/internal/domain"
	"s3-gallery/internal/gallery"
	"s3-gallery/internal/repository"
	"s3-gallery/internal/repository/sqlite"
	"s3-gallery/internal/storage"
)

// App bundles the long-lived components shared by the server and the CLI.
type App struct {
	Config   config.Config
	Logger   *logrus.Logger
	Session  storage.Session
	Uploader *gallery.Uploader
	Loader   *gallery.Loader
	State    *gallery.State
	// Journal is nil when database.path is empty.
	Journal repository.UploadRepository

	db *sql.DB
}

// NewLogger returns a logrus logger at the given level, falling back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logger.Warnf("invalid log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = NewLogger(cfg.Log.Level)
	}

	session, err := OpenSession(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Session: session,
	}

	if cfg.Database.Path != "" {
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		journal := sqlite.NewUploadRepository(db)
		if err := journal.Init(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init upload repository: %w", err)
		}
		a.db = db
		a.Journal = journal
	}

	a.Uploader = gallery.NewUploader(session, gallery.UploaderConfig{
		Journal: a.Journal,
		Logger:  logger,
	})
	a.Loader = gallery.NewLoader(session, gallery.LoaderConfig{
		Concurrency: cfg.Gallery.SignConcurrency,
		Logger:      logger,
	})
	a.State = gallery.NewState(a.Uploader, a.Loader, gallery.StateConfig{
		Logger:  logger,
		Release: ReleaseStaged(cfg.Upload.StagingDir, logger),
	})
	return a, nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// OpenSession builds the storage session for the configured driver.
func OpenSession(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Session, error) {
	opts := storage.ClientOptions{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	}
	partSize := int64(cfg.Storage.PartSizeMB) * 1024 * 1024
	creds := "ambient credentials"
	if opts.AccessKeyID != "" {
		creds = "static key pair"
	}

	switch cfg.Storage.Driver {
	case "", "s3":
		client, err := storage.NewS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		logger.Infof("using s3 bucket %s (region %s, %s)", cfg.Storage.Bucket, cfg.Storage.Region, creds)
		return storage.NewS3Session(client, storage.S3Config{
			Bucket:      cfg.Storage.Bucket,
			PartSize:    partSize,
			Concurrency: cfg.Storage.UploadConcurrency,
		})
	case "minio":
		client, err := storage.NewMinioClient(opts)
		if err != nil {
			return nil, err
		}
		logger.Infof("using minio bucket %s at %s (%s)", cfg.Storage.Bucket, cfg.Storage.Endpoint, creds)
		return storage.NewMinioSession(client, cfg.Storage.Bucket, partSize)
	case "memory":
		logger.Warnf("using in-memory bucket %s, objects are lost on exit", cfg.Storage.Bucket)
		return storage.NewMemorySession(cfg.Storage.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// ReleaseStaged returns a hook that deletes dropped selections, but only those
// staged under dir. Files the user picked from elsewhere are left alone.
func ReleaseStaged(dir string, logger *logrus.Logger) func(*domain.LocalFile) {
	root := filepath.Clean(dir)
	return func(file *domain.LocalFile) {
		if dir == "" || file == nil || file.Path == "" {
			return
		}
		clean := filepath.Clean(file.Path)
		rel, err := filepath.Rel(root, clean)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return
		}
		if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
			logger.Warnf("remove staged file %s: %v", clean, err)
		}
	}
}
