package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"s3-gallery/internal/domain"
)

// NewMinioClient builds a minio client for an S3-compatible endpoint such as
// "http://localhost:9000". The region is set explicitly so presigning never
// needs a bucket-location lookup.
func NewMinioClient(opts ClientOptions) (*minio.Client, error) {
	if strings.TrimSpace(opts.Region) == "" {
		return nil, fmt.Errorf("storage region is required")
	}
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}

	host, secure, err := splitEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if opts.staticCredentials() {
		creds = credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func splitEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// MinioSession implements Session with minio-go.
type MinioSession struct {
	client   *minio.Client
	bucket   string
	partSize uint64
}

func NewMinioSession(client *minio.Client, bucket string, partSize int64) (*MinioSession, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	s := &MinioSession{client: client, bucket: bucket}
	if partSize > 0 {
		s.partSize = uint64(partSize)
	}
	return s, nil
}

func (s *MinioSession) Bucket() string {
	return s.bucket
}

func (s *MinioSession) PutObject(ctx context.Context, key domain.ObjectKey, body io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if key == "" {
		return &Error{Op: OpPut, Err: errors.New("object key is required")}
	}
	if size <= 0 {
		size = -1
	}

	opts := minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	}
	if p := newProgressReporter(size, progress); p != nil {
		opts.Progress = p
	}

	if _, err := s.client.PutObject(ctx, s.bucket, string(key), body, size, opts); err != nil {
		return minioError(OpPut, key, err)
	}
	return nil
}

func (s *MinioSession) ListObjects(ctx context.Context) ([]domain.StoredObject, error) {
	objects := []domain.StoredObject{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, minioError(OpList, "", obj.Err)
		}
		modified := obj.LastModified
		objects = append(objects, domain.StoredObject{
			Key:          domain.ObjectKey(obj.Key),
			Size:         obj.Size,
			LastModified: &modified,
		})
	}
	return objects, nil
}

func (s *MinioSession) Sign(ctx context.Context, key domain.ObjectKey, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, string(key), ttl, nil)
	if err != nil {
		return "", minioError(OpSign, key, err)
	}
	return u.String(), nil
}

func minioError(op Op, key domain.ObjectKey, err error) *Error {
	e := &Error{Op: op, Key: key, Err: err}
	if resp := minio.ToErrorResponse(err); resp.Code != "" {
		e.Code = resp.Code
	}
	return e
}

var _ Session = (*MinioSession)(nil)
