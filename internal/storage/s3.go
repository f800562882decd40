package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"s3-gallery/internal/domain"
)

var (
	loadDefaultAWSConfig = awscfg.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ClientOptions describes how to reach the remote store.
type ClientOptions struct {
	Region   string
	Endpoint string
	// AccessKeyID and SecretAccessKey are optional. When empty the ambient
	// credential chain (env, shared profile, instance role) is used.
	AccessKeyID     string
	SecretAccessKey string
}

func (o ClientOptions) staticCredentials() bool {
	return o.AccessKeyID != "" && o.SecretAccessKey != ""
}

// NewS3Client builds an S3 client for the given region, optionally pinned to a
// custom S3-compatible endpoint.
func NewS3Client(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	if strings.TrimSpace(opts.Region) == "" {
		return nil, fmt.Errorf("storage region is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(opts.Region),
	}
	if opts.staticCredentials() {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Config tunes an S3Session.
type S3Config struct {
	Bucket string
	// PartSize is the multipart chunk size in bytes; zero keeps the SDK default.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel; zero keeps the
	// SDK default.
	Concurrency int
}

// S3Session talks to Amazon S3 (or a compatible API).
type S3Session struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
}

func NewS3Session(client *s3.Client, cfg S3Config) (*S3Session, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if cfg.PartSize > 0 && cfg.PartSize < manager.MinUploadPartSize {
		return nil, fmt.Errorf("part size must be at least %d bytes", manager.MinUploadPartSize)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})

	return &S3Session{
		client:   client,
		uploader: uploader,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
	}, nil
}

func (s *S3Session) Bucket() string {
	return s.bucket
}

func (s *S3Session) PutObject(ctx context.Context, key domain.ObjectKey, body io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if key == "" {
		return &Error{Op: OpPut, Err: errors.New("object key is required")}
	}

	reader := body
	if p := newProgressReporter(size, progress); p != nil {
		reader = io.TeeReader(body, p)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(key)),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	// The uploader aborts the multipart upload on failure, so the object
	// either commits whole or not at all.
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return s3Error(OpPut, key, err)
	}
	return nil
}

func (s *S3Session) ListObjects(ctx context.Context) ([]domain.StoredObject, error) {
	objects := []domain.StoredObject{}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}

	for {
		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, s3Error(OpList, "", err)
		}

		for _, obj := range output.Contents {
			objects = append(objects, domain.StoredObject{
				Key:          domain.ObjectKey(aws.ToString(obj.Key)),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
			})
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return objects, nil
}

// Sign presigns a GET request. Presigning is computed locally from the held
// credentials and does not contact the store.
func (s *S3Session) Sign(ctx context.Context, key domain.ObjectKey, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(key)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", s3Error(OpSign, key, err)
	}
	return req.URL, nil
}

func s3Error(op Op, key domain.ObjectKey, err error) *Error {
	e := &Error{Op: op, Key: key, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Code = apiErr.ErrorCode()
	}
	return e
}

var _ Session = (*S3Session)(nil)
