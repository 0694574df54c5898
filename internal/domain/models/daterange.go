package models

import (
	"fmt"
	"time"
)

// DateRange is a closed interval [Start, End] of instants.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range, rejecting End before Start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("range end %s before start %s", end, start)
	}
	return DateRange{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (r DateRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// Contains reports whether t lies inside the closed range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Overlaps reports whether the two closed ranges share at least one instant.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

// AdjacentTo reports whether the gap between the ranges, in either
// direction, is at most one tick. Monthly files by construction end at
// 23:59:59.9999999 and the next begins at 00:00:00.0000000, exactly one
// tick apart; those must merge without a false gap.
func (r DateRange) AdjacentTo(o DateRange) bool {
	if gap := o.Start.Sub(r.End); gap >= 0 && gap <= Tick {
		return true
	}
	if gap := r.Start.Sub(o.End); gap >= 0 && gap <= Tick {
		return true
	}
	return false
}

// Intersect returns the overlap of the two ranges, if any.
func (r DateRange) Intersect(o DateRange) (DateRange, bool) {
	if !r.Overlaps(o) {
		return DateRange{}, false
	}
	start := r.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := r.End
	if o.End.Before(end) {
		end = o.End
	}
	return DateRange{Start: start, End: end}, true
}

// Merge combines two overlapping or adjacent ranges into their hull.
func (r DateRange) Merge(o DateRange) (DateRange, error) {
	if !r.Overlaps(o) && !r.AdjacentTo(o) {
		return DateRange{}, fmt.Errorf("ranges [%s, %s] and [%s, %s] neither overlap nor touch",
			r.Start, r.End, o.Start, o.End)
	}
	start := r.Start
	if o.Start.Before(start) {
		start = o.Start
	}
	end := r.End
	if o.End.After(end) {
		end = o.End
	}
	return DateRange{Start: start, End: end}, nil
}
