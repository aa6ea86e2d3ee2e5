package analyzer

import (
	"context"
	"sync/atomic"
)

// ProgressFunc receives the number of finished files, the total known so
// far and the file that just finished.
type ProgressFunc func(done, total int, path string)

// Tracker counts finished files across worker goroutines.
type Tracker struct {
	total    atomic.Int64
	done     atomic.Int64
	failed   atomic.Int64
	callback ProgressFunc
}

// NewTracker creates a tracker. callback may be nil.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the total by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int64(n))
}

// Tick marks path as finished.
func (t *Tracker) Tick(path string) {
	done := t.done.Add(1)
	if t.callback != nil {
		t.callback(int(done), int(t.total.Load()), path)
	}
}

// Fail marks path as finished without a result.
func (t *Tracker) Fail(path string) {
	t.failed.Add(1)
	t.Tick(path)
}

// Record marks path as finished, failed when err is non-nil. It has the
// shape of fileproc.DoneFunc.
func (t *Tracker) Record(path string, err error) {
	if err != nil {
		t.Fail(path)
		return
	}
	t.Tick(path)
}

// Done returns the number of finished files, failures included.
func (t *Tracker) Done() int {
	return int(t.done.Load())
}

// Failed returns the number of files that produced no result.
func (t *Tracker) Failed() int {
	return int(t.failed.Load())
}

// Total returns the number of files expected.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker attaches t to ctx.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker attached to ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}
