package store

import (
	"time"

	"github.com/blackwell-systems/botwatch/internal/extractor"
)

// Run is one watch session over a fastbot log.
type Run struct {
	ID         string
	LogPath    string
	Command    string // empty unless started by "botwatch run"
	StartedAt  time.Time
	FinishedAt *time.Time
	ExitCode   *int
	EventCount int
}

// Finished reports whether FinishRun has been called for the run.
func (r *Run) Finished() bool {
	return r.FinishedAt != nil
}

// Event is a classified log event recorded during a run.
type Event struct {
	ID         int64
	RunID      string
	Kind       extractor.Kind
	Body       string
	DetectedAt time.Time

	// Set for coverage events only.
	CoveragePct *float64
	CoverageAt  *time.Time
}

// CoveragePoint is one sample of a run's coverage series.
type CoveragePoint struct {
	At      time.Time
	Percent float64
}
