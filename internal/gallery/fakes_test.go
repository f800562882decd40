package gallery

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"s3-gallery/internal/domain"
	"s3-gallery/internal/repository"
	"s3-gallery/internal/storage"
)

type fakeSession struct {
	storage.Session

	mu      sync.Mutex
	objects []domain.StoredObject
	listErr error
	signFn  func(ctx context.Context, key domain.ObjectKey) (string, error)
	putErr  error
	puts    []domain.ObjectKey
	types   []string
}

func (f *fakeSession) ListObjects(ctx context.Context) ([]domain.StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.StoredObject, len(f.objects))
	copy(out, f.objects)
	return out, nil
}

func (f *fakeSession) Sign(ctx context.Context, key domain.ObjectKey, ttl time.Duration) (string, error) {
	if f.signFn != nil {
		return f.signFn(ctx, key)
	}
	return "https://signed.example/" + string(key), nil
}

func (f *fakeSession) PutObject(ctx context.Context, key domain.ObjectKey, body io.Reader, size int64, contentType string, progress storage.ProgressFunc) error {
	f.mu.Lock()
	f.puts = append(f.puts, key)
	f.types = append(f.types, contentType)
	putErr := f.putErr
	f.mu.Unlock()

	buf := make([]byte, 3)
	var done int64
	for {
		n, err := body.Read(buf)
		done += int64(n)
		if n > 0 && progress != nil {
			progress(done, size)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if putErr != nil {
			return &storage.Error{Op: storage.OpPut, Key: key, Code: "AccessDenied", Err: putErr}
		}
	}
	if putErr != nil {
		return &storage.Error{Op: storage.OpPut, Key: key, Code: "AccessDenied", Err: putErr}
	}
	return nil
}

func (f *fakeSession) Bucket() string { return "photos" }

func keysOf(objects ...string) []domain.StoredObject {
	out := make([]domain.StoredObject, len(objects))
	for i, k := range objects {
		out[i] = domain.StoredObject{Key: domain.ObjectKey(k), Size: int64(len(k))}
	}
	return out
}

func viewKeys(views []domain.SignedView) []domain.ObjectKey {
	out := make([]domain.ObjectKey, len(views))
	for i, v := range views {
		out[i] = v.Key
	}
	return out
}

func writeFile(t *testing.T, name string, content []byte) *domain.LocalFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	f, err := domain.OpenLocalFile(path)
	require.NoError(t, err)
	return f
}

type fakeJournal struct {
	repository.UploadRepository

	mu        sync.Mutex
	created   []domain.Upload
	statuses  []domain.UploadStatus
	completed []string
	errMsg    string
	createErr error
}

func (j *fakeJournal) Create(ctx context.Context, u *domain.Upload) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.createErr != nil {
		return j.createErr
	}
	j.created = append(j.created, *u)
	return nil
}

func (j *fakeJournal) UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, msg *string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses = append(j.statuses, status)
	if msg != nil {
		j.errMsg = *msg
	}
	return nil
}

func (j *fakeJournal) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completed = append(j.completed, id)
	return nil
}
