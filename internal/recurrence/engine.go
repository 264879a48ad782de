// Package recurrence expands booking series into individual occurrences.
package recurrence

import (
	"errors"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates occurrences for each day within the range.
	FrequencyDaily
	// FrequencyWeekly generates occurrences for the selected weekdays.
	FrequencyWeekly
)

// MaxSpan bounds how far a single series may reach.
const MaxSpan = 366 * 24 * time.Hour

// ParseFrequency maps "daily" and "weekly" to a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch value {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	}
	return FrequencyUnspecified, ErrInvalidFrequency
}

// String implements fmt.Stringer.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	}
	return "unspecified"
}

// Rule describes how a booking series repeats.
type Rule struct {
	SeriesID  string
	Frequency Frequency
	Weekdays  []time.Weekday
	StartsOn  time.Time
	EndsOn    *time.Time
}

// GenerateOptions defines optional range bounds for occurrence generation.
type GenerateOptions struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// Occurrence is one generated instance of a series.
type Occurrence struct {
	SeriesID string
	Start    time.Time
	End      time.Time
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates wall clock times in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidWindow indicates the generation window is unbounded or too long.
	ErrInvalidWindow = errors.New("recurrence: generation window requires an end bound within a year")
	// ErrInvalidDuration indicates the base booking duration is invalid.
	ErrInvalidDuration = errors.New("recurrence: booking duration must be positive")
)

// GenerateOccurrences produces occurrences of the base booking within the
// window bounded by the rule's EndsOn and the optional range.
//
// Occurrences keep the wall clock time of baseStart in the engine location,
// so a 19:00 training stays at 19:00 across daylight saving changes. Weekly
// rules default to the weekday of baseStart; daily rules use weekdays as a
// filter when present.
func (e *Engine) GenerateOccurrences(rule Rule, baseStart, baseEnd time.Time, opts GenerateOptions) ([]Occurrence, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	baseStart = baseStart.In(loc)
	baseEnd = baseEnd.In(loc)
	if !baseEnd.After(baseStart) {
		return nil, ErrInvalidDuration
	}
	duration := baseEnd.Sub(baseStart)

	ruleStart := rule.StartsOn.In(loc)
	if rule.StartsOn.IsZero() {
		ruleStart = baseStart
	}

	var upperBound time.Time
	if rule.EndsOn != nil {
		upperBound = rule.EndsOn.In(loc)
	}
	if opts.RangeEnd != nil {
		rangeEnd := opts.RangeEnd.In(loc)
		if upperBound.IsZero() || rangeEnd.Before(upperBound) {
			upperBound = rangeEnd
		}
	}
	if upperBound.IsZero() || upperBound.Sub(ruleStart) > MaxSpan {
		return nil, ErrInvalidWindow
	}

	lowerBound := ruleStart
	if opts.RangeStart != nil && opts.RangeStart.After(lowerBound) {
		lowerBound = opts.RangeStart.In(loc)
	}
	if lowerBound.After(upperBound) {
		return nil, nil
	}

	weekdaySet := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdaySet[day] = struct{}{}
	}
	if rule.Frequency == FrequencyWeekly && len(weekdaySet) == 0 {
		weekdaySet[baseStart.Weekday()] = struct{}{}
	}

	occurrences := make([]Occurrence, 0)
	for current := firstCandidate(lowerBound, baseStart, loc); !current.After(upperBound); current = nextDay(current, baseStart, loc) {
		include, err := shouldInclude(rule.Frequency, weekdaySet, current.Weekday())
		if err != nil {
			return nil, err
		}
		if include {
			occurrences = append(occurrences, Occurrence{
				SeriesID: rule.SeriesID,
				Start:    current,
				End:      current.Add(duration),
			})
		}
	}

	return occurrences, nil
}

func firstCandidate(lowerBound, template time.Time, loc *time.Location) time.Time {
	candidate := combineDateTime(lowerBound, template, loc)
	for candidate.Before(lowerBound) {
		candidate = nextDay(candidate, template, loc)
	}
	return candidate
}

func nextDay(current, template time.Time, loc *time.Location) time.Time {
	return combineDateTime(current.In(loc).AddDate(0, 0, 1), template, loc)
}

func combineDateTime(dateSource, template time.Time, loc *time.Location) time.Time {
	y, m, d := dateSource.In(loc).Date()
	clock := template.In(loc)
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), loc)
}

func shouldInclude(freq Frequency, weekdaySet map[time.Weekday]struct{}, day time.Weekday) (bool, error) {
	switch freq {
	case FrequencyDaily:
		if len(weekdaySet) == 0 {
			return true, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyWeekly:
		if len(weekdaySet) == 0 {
			return false, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyUnspecified:
		fallthrough
	default:
		return false, ErrInvalidFrequency
	}
}
