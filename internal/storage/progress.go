package storage

import "sync"

// progressReporter counts bytes flowing through it and forwards the running
// total. It is used both as an io.Writer (tee) and an io.Reader (minio hook).
type progressReporter struct {
	mu    sync.Mutex
	total int64
	done  int64
	cb    ProgressFunc
}

func newProgressReporter(total int64, cb ProgressFunc) *progressReporter {
	if cb == nil {
		return nil
	}
	if total < 0 {
		total = 0
	}
	return &progressReporter{
		total: total,
		cb:    cb,
	}
}

func (p *progressReporter) Write(b []byte) (int, error) {
	p.add(len(b))
	return len(b), nil
}

func (p *progressReporter) Read(b []byte) (int, error) {
	p.add(len(b))
	return len(b), nil
}

func (p *progressReporter) add(n int) {
	if n == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += int64(n)
	if p.total > 0 && p.done > p.total {
		p.done = p.total
	}
	p.cb(p.done, p.total)
}
