package convert

import (
	"time"

	"episodereel/internal/manifest"
)

// Trailing describes the episode still buffered when the range ended.
type Trailing struct {
	Episode int
	Frames  int
	Flushed bool
}

// Summary reports what a run did. Run returns the partial summary alongside
// any error.
type Summary struct {
	Range        Range
	DatasetLen   int
	FramesRead   int
	Entries      []manifest.Entry
	Trailing     *Trailing
	ManifestPath string
	Elapsed      time.Duration
}

// EpisodesFlushed returns how many videos were written.
func (s Summary) EpisodesFlushed() int {
	return len(s.Entries)
}
