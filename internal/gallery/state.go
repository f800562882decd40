package gallery

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"s3-gallery/internal/domain"
)

// FileUploader writes one selected file and returns its key.
type FileUploader interface {
	Upload(ctx context.Context, file *domain.LocalFile, progress *ProgressStream) (domain.ObjectKey, error)
}

// SnapshotLoader produces a complete gallery snapshot.
type SnapshotLoader interface {
	Reload(ctx context.Context) ([]domain.SignedView, error)
}

type StateConfig struct {
	Logger *logrus.Logger
	// Release is called with a selection once it is dropped: replaced by a
	// new choice or cleared after a successful upload.
	Release func(file *domain.LocalFile)
}

// State holds the current selection and the displayed gallery snapshot, and
// sequences uploads and reloads against them. It is safe for concurrent use.
//
// Reloads are ticketed: a snapshot is applied only if its reload started after
// the one that produced the current snapshot, so a slow, older reload can never
// overwrite a newer result.
type State struct {
	uploader FileUploader
	loader   SnapshotLoader
	cfg      StateConfig

	mu       sync.Mutex
	selected *domain.LocalFile
	// uploading is the file an upload is reading; it is released only once
	// that upload returns.
	uploading *domain.LocalFile
	images    []domain.SignedView
	issued    uint64
	applied   uint64
	active    *ProgressStream
}

func NewState(uploader FileUploader, loader SnapshotLoader, cfg StateConfig) *State {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &State{
		uploader: uploader,
		loader:   loader,
		cfg:      cfg,
		images:   []domain.SignedView{},
	}
}

// Selected returns the current selection, or nil.
func (s *State) Selected() *domain.LocalFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	f := *s.selected
	return &f
}

// Images returns a copy of the current snapshot.
func (s *State) Images() []domain.SignedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SignedView, len(s.images))
	copy(out, s.images)
	return out
}

// Progress returns the stream of the most recently started upload, or nil if
// none has been started.
func (s *State) Progress() *ProgressStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnFileChosen replaces the selection. A nil file clears it. A replaced file
// that is being uploaded is released when its upload returns.
func (s *State) OnFileChosen(file *domain.LocalFile) {
	s.mu.Lock()
	prev := s.selected
	s.selected = file
	busy := prev != nil && prev == s.uploading
	s.mu.Unlock()

	if prev != nil && prev != file && !busy {
		s.release(prev)
	}
}

// OnUploadRequested uploads the selected file and refreshes the gallery. With
// nothing selected it does nothing and returns an empty key. A failed upload
// keeps the selection; a failed refresh after a successful upload keeps the
// previous snapshot and is only logged.
func (s *State) OnUploadRequested(ctx context.Context) (domain.ObjectKey, error) {
	s.mu.Lock()
	file := s.selected
	if file == nil {
		s.mu.Unlock()
		return "", nil
	}
	stream := NewProgressStream(file.Size)
	s.active = stream
	s.uploading = file
	s.mu.Unlock()

	key, err := s.uploader.Upload(ctx, file, stream)

	s.mu.Lock()
	s.uploading = nil
	selected := s.selected == file
	if err == nil && selected {
		s.selected = nil
	}
	s.mu.Unlock()
	// replaced mid-upload, or uploaded and cleared
	if !selected || err == nil {
		s.release(file)
	}

	if err != nil {
		s.cfg.Logger.WithField("file", file.Name).Errorf("upload error: %v", err)
		return "", err
	}

	if err := s.refresh(ctx); err != nil {
		s.cfg.Logger.WithField("key", key).Warnf("refresh after upload: %v", err)
	}
	return key, nil
}

// OnMount loads the gallery for the first time.
func (s *State) OnMount(ctx context.Context) error {
	return s.refresh(ctx)
}

// OnManualRefresh reloads the gallery on explicit request.
func (s *State) OnManualRefresh(ctx context.Context) error {
	return s.refresh(ctx)
}

func (s *State) refresh(ctx context.Context) error {
	s.mu.Lock()
	s.issued++
	ticket := s.issued
	s.mu.Unlock()

	views, err := s.loader.Reload(ctx)
	if err != nil {
		s.cfg.Logger.WithField("ticket", ticket).Errorf("error loading images: %v", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket < s.applied {
		s.cfg.Logger.WithField("ticket", ticket).Debug("discarding stale gallery snapshot")
		return nil
	}
	s.images = views
	s.applied = ticket
	return nil
}

func (s *State) release(file *domain.LocalFile) {
	if s.cfg.Release != nil {
		s.cfg.Release(file)
	}
}
