package store

import (
	"context"
	"time"

	"github.com/blackwell-systems/botwatch/internal/extractor"
)

// Recorder writes every event a watcher dispatches into one run.
// It satisfies watcher.Sink.
type Recorder struct {
	store *Store
	runID string
	now   func() time.Time
}

// NewRecorder returns a Recorder appending to runID.
func NewRecorder(s *Store, runID string) *Recorder {
	return &Recorder{store: s, runID: runID, now: time.Now}
}

// RunID returns the run this recorder writes to.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record stores ev. It returns ctx's error without writing if ctx is done.
func (r *Recorder) Record(ctx context.Context, ev extractor.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.store.InsertEvent(r.runID, ev, r.now())
	return err
}
