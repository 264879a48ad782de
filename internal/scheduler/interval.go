package scheduler

import "time"

// MinimumDuration is the floor applied when a malformed interval is coerced.
const MinimumDuration = 30 * time.Minute

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns the interval [start, end) normalized to UTC.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// Valid reports whether End is strictly after Start.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two intervals share any instant. Intervals that
// only touch at a boundary do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Overlaps is the free-function form of Interval.Overlaps.
func Overlaps(a, b Interval) bool {
	return a.Overlaps(b)
}

// Coerce returns i unchanged when it is valid. Otherwise End is moved to
// Start+min (MinimumDuration when min <= 0).
func Coerce(i Interval, min time.Duration) Interval {
	if min <= 0 {
		min = MinimumDuration
	}
	if i.Valid() {
		return i
	}
	return Interval{Start: i.Start, End: i.Start.Add(min)}
}
