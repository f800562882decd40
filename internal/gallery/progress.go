package gallery

import "sync"

type ProgressKind string

const (
	ProgressStarted   ProgressKind = "started"
	ProgressTransfer  ProgressKind = "progress"
	ProgressCompleted ProgressKind = "completed"
	ProgressFailed    ProgressKind = "failed"
)

// ProgressEvent is one observation of an upload.
type ProgressEvent struct {
	Kind    ProgressKind `json:"kind"`
	Done    int64        `json:"done"`
	Total   int64        `json:"total"`
	Percent float64      `json:"percent"`
	Err     error        `json:"-"`
}

// Terminal reports whether no further events follow.
func (e ProgressEvent) Terminal() bool {
	return e.Kind == ProgressCompleted || e.Kind == ProgressFailed
}

// ProgressStream publishes the progress of a single upload. Done and Percent
// never decrease; the stream ends with exactly one completed or failed event.
// Subscribers always observe the most recent event (intermediate ones may be
// coalesced) and their channels are closed after the terminal event.
type ProgressStream struct {
	mu     sync.Mutex
	latest ProgressEvent
	closed bool
	subs   []chan ProgressEvent
}

func NewProgressStream(total int64) *ProgressStream {
	if total < 0 {
		total = 0
	}
	return &ProgressStream{
		latest: ProgressEvent{Kind: ProgressStarted, Total: total},
	}
}

// Latest returns the most recent event for polling consumers.
func (p *ProgressStream) Latest() ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Subscribe returns a channel primed with the latest event.
func (p *ProgressStream) Subscribe() <-chan ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan ProgressEvent, 1)
	ch <- p.latest
	if p.closed {
		close(ch)
		return ch
	}
	p.subs = append(p.subs, ch)
	return ch
}

// Report records transferred bytes. Regressions and reports after the stream
// has ended are ignored.
func (p *ProgressStream) Report(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if total > 0 {
		p.latest.Total = total
	}
	if done < p.latest.Done || (done == p.latest.Done && p.latest.Kind == ProgressTransfer) {
		return
	}
	p.publish(ProgressEvent{
		Kind:    ProgressTransfer,
		Done:    done,
		Total:   p.latest.Total,
		Percent: percent(done, p.latest.Total),
	})
}

// Complete publishes the terminal 100% event.
func (p *ProgressStream) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	done := p.latest.Done
	if p.latest.Total > done {
		done = p.latest.Total
	}
	p.publish(ProgressEvent{Kind: ProgressCompleted, Done: done, Total: p.latest.Total, Percent: 100})
	p.close()
}

// Fail publishes the terminal failure event, keeping the last known position.
func (p *ProgressStream) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	ev := p.latest
	ev.Kind = ProgressFailed
	ev.Err = err
	p.publish(ev)
	p.close()
}

func (p *ProgressStream) publish(ev ProgressEvent) {
	p.latest = ev
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			// Replace the unread event with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (p *ProgressStream) close() {
	p.closed = true
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	v := float64(done) / float64(total) * 100
	if v > 100 {
		v = 100
	}
	return v
}
