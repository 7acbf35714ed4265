package convert

import (
	"fmt"

	"episodereel/internal/services"
)

// Range is the half-open frame interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of frames in the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// ComputeRange converts start and end ratios of a dataset with length frames
// into frame indices, truncating toward zero.
func ComputeRange(length int, startRatio, endRatio float64) (Range, error) {
	if length < 0 {
		return Range{}, services.Wrap(services.ErrValidation, "convert", "range", fmt.Sprintf("negative dataset length %d", length), nil)
	}
	if !inUnitInterval(startRatio) {
		return Range{}, services.Wrap(services.ErrValidation, "convert", "range", fmt.Sprintf("start_ratio %v outside [0, 1]", startRatio), nil)
	}
	if !inUnitInterval(endRatio) {
		return Range{}, services.Wrap(services.ErrValidation, "convert", "range", fmt.Sprintf("end_ratio %v outside [0, 1]", endRatio), nil)
	}
	if startRatio > endRatio {
		return Range{}, services.Wrap(services.ErrValidation, "convert", "range", fmt.Sprintf("start_ratio %v exceeds end_ratio %v", startRatio, endRatio), nil)
	}
	return Range{
		Start: int(float64(length) * startRatio),
		End:   int(float64(length) * endRatio),
	}, nil
}

// inUnitInterval reports whether r lies in [0, 1]. NaN does not.
func inUnitInterval(r float64) bool {
	return r >= 0 && r <= 1
}
