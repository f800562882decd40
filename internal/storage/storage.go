package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"s3-gallery/internal/domain"
)

// ErrBucketRequired is returned when a session is built without a bucket.
var ErrBucketRequired = errors.New("storage bucket is required")

// ProgressFunc receives the number of bytes transferred so far and the
// expected total (0 when unknown).
type ProgressFunc func(done, total int64)

// Session is a configured handle to one bucket.
type Session interface {
	// PutObject writes body under key, replacing any existing object. Large
	// payloads are transferred in parts.
	PutObject(ctx context.Context, key domain.ObjectKey, body io.Reader, size int64, contentType string, progress ProgressFunc) error
	// ListObjects returns every object in the bucket in store order. An empty
	// bucket yields an empty slice and a nil error.
	ListObjects(ctx context.Context) ([]domain.StoredObject, error)
	// Sign returns a read-only URL for key valid for ttl. The object is not
	// checked for existence.
	Sign(ctx context.Context, key domain.ObjectKey, ttl time.Duration) (string, error)
	// Bucket names the bucket the session is bound to.
	Bucket() string
}

type Op string

const (
	OpPut  Op = "put"
	OpList Op = "list"
	OpSign Op = "sign"
)

// Error reports a failed remote call.
type Error struct {
	Op   Op
	Key  domain.ObjectKey
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := "storage " + string(e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", string(e.Key))
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
