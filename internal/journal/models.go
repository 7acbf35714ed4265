package journal

import "time"

// Status is the outcome label stored for a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Run is one invocation of the converter.
type Run struct {
	ID         string
	Source     string
	OutDir     string
	RangeStart int
	RangeEnd   int
	FramesRead int
	Status     Status
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Episodes   int
}

// Duration returns how long the run took, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Episode is one video flushed by a run.
type Episode struct {
	EpisodeID  int
	FirstFrame int
	FrameCount int
	FilePath   string
	Text       string
	CreatedAt  time.Time
}

// Outcome carries the final state of a run.
type Outcome struct {
	RangeStart int
	RangeEnd   int
	FramesRead int
	Err        error
}
