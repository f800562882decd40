package gallery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"s3-gallery/internal/domain"
	"s3-gallery/internal/storage"
)

// SignTTL is how long a signed view stays valid.
const SignTTL = 3600 * time.Second

type LoaderConfig struct {
	// Concurrency bounds in-flight signing calls. Zero means one per object.
	Concurrency int
	Now         func() time.Time
	Logger      *logrus.Logger
}

// Loader builds gallery snapshots: it lists the bucket and signs every object.
type Loader struct {
	session storage.Session
	cfg     LoaderConfig
}

func NewLoader(session storage.Session, cfg LoaderConfig) *Loader {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Loader{session: session, cfg: cfg}
}

// Reload returns one signed view per stored object, in listing order. Any
// failure, listing or signing, fails the whole reload.
func (l *Loader) Reload(ctx context.Context) ([]domain.SignedView, error) {
	objects, err := l.session.ListObjects(ctx)
	if err != nil {
		return nil, &LoadError{Stage: StageList, Err: err}
	}

	views := make([]domain.SignedView, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	if l.cfg.Concurrency > 0 {
		g.SetLimit(l.cfg.Concurrency)
	}

	for i, obj := range objects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &LoadError{Stage: StageSign, Key: obj.Key, Err: err}
			}
			issued := l.cfg.Now()
			url, err := l.session.Sign(gctx, obj.Key, SignTTL)
			if err != nil {
				return &LoadError{Stage: StageSign, Key: obj.Key, Err: err}
			}
			views[i] = domain.SignedView{
				Key:       obj.Key,
				URL:       url,
				ExpiresAt: issued.Add(SignTTL),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.cfg.Logger.WithField("objects", len(views)).Debug("gallery loaded")
	return views, nil
}
