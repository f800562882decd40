package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"s3-gallery/internal/domain"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemorySession keeps objects in process memory. Listing is lexicographic by
// key, like S3.
type MemorySession struct {
	bucket string
	now    func() time.Time

	mu      sync.RWMutex
	objects map[domain.ObjectKey]memoryObject
}

func NewMemorySession(bucket string) *MemorySession {
	if bucket == "" {
		bucket = "gallery"
	}
	return &MemorySession{
		bucket:  bucket,
		now:     time.Now,
		objects: make(map[domain.ObjectKey]memoryObject),
	}
}

func (s *MemorySession) Bucket() string {
	return s.bucket
}

func (s *MemorySession) PutObject(ctx context.Context, key domain.ObjectKey, body io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if key == "" {
		return &Error{Op: OpPut, Err: errors.New("object key is required")}
	}

	reader := body
	if p := newProgressReporter(size, progress); p != nil {
		reader = io.TeeReader(body, p)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, contextReader{ctx: ctx, r: reader}); err != nil {
		return &Error{Op: OpPut, Key: key, Err: fmt.Errorf("read body: %w", err)}
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{
		data:        buf.Bytes(),
		contentType: contentType,
		modified:    s.now().UTC(),
	}
	s.mu.Unlock()
	return nil
}

func (s *MemorySession) ListObjects(ctx context.Context) ([]domain.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: OpList, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := make([]domain.StoredObject, 0, len(s.objects))
	for key, obj := range s.objects {
		modified := obj.modified
		objects = append(objects, domain.StoredObject{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: &modified,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *MemorySession) Sign(ctx context.Context, key domain.ObjectKey, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: OpSign, Key: key, Err: err}
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     s.bucket,
		Path:     "/" + string(key),
		RawQuery: url.Values{"expires": {fmt.Sprint(s.now().Add(ttl).Unix())}}.Encode(),
	}
	return u.String(), nil
}

// Object returns a copy of the stored content and its content type.
func (s *MemorySession) Object(key domain.ObjectKey) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ Session = (*MemorySession)(nil)
