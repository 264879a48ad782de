package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestEngine_GenerateOccurrences(t *testing.T) {
	t.Parallel()

	baseStart := time.Date(2024, time.March, 4, 19, 0, 0, 0, time.UTC) // Monday
	baseEnd := baseStart.Add(90 * time.Minute)
	engine := NewEngine(nil)

	t.Run("respects weekday selections", func(t *testing.T) {
		t.Parallel()

		endsOn := time.Date(2024, time.March, 17, 23, 59, 0, 0, time.UTC)
		rule := Rule{
			SeriesID:  "series-1",
			Frequency: FrequencyWeekly,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
			StartsOn:  baseStart,
			EndsOn:    &endsOn,
		}

		got, err := engine.GenerateOccurrences(rule, baseStart, baseEnd, GenerateOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		wantDays := []int{4, 6, 11, 13}
		if len(got) != len(wantDays) {
			t.Fatalf("expected %d occurrences, got %d", len(wantDays), len(got))
		}
		for i, occ := range got {
			if occ.Start.Day() != wantDays[i] || occ.Start.Hour() != 19 {
				t.Fatalf("occurrence %d: unexpected start %v", i, occ.Start)
			}
			if occ.End.Sub(occ.Start) != 90*time.Minute {
				t.Fatalf("occurrence %d: unexpected duration %v", i, occ.End.Sub(occ.Start))
			}
			if occ.SeriesID != "series-1" {
				t.Fatalf("occurrence %d: missing series id", i)
			}
		}
	})

	t.Run("weekly without weekdays repeats on the base weekday", func(t *testing.T) {
		t.Parallel()

		endsOn := baseStart.AddDate(0, 0, 21)
		rule := Rule{Frequency: FrequencyWeekly, StartsOn: baseStart, EndsOn: &endsOn}
		got, err := engine.GenerateOccurrences(rule, baseStart, baseEnd, GenerateOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("expected 4 occurrences, got %d", len(got))
		}
		for _, occ := range got {
			if occ.Start.Weekday() != time.Monday {
				t.Fatalf("unexpected weekday %v", occ.Start.Weekday())
			}
		}
	})

	t.Run("clips occurrences to the requested period", func(t *testing.T) {
		t.Parallel()

		endsOn := baseStart.AddDate(0, 0, 30)
		rangeStart := baseStart.AddDate(0, 0, 3)
		rangeEnd := baseStart.AddDate(0, 0, 10)
		rule := Rule{Frequency: FrequencyDaily, StartsOn: baseStart, EndsOn: &endsOn}

		got, err := engine.GenerateOccurrences(rule, baseStart, baseEnd, GenerateOptions{RangeStart: &rangeStart, RangeEnd: &rangeEnd})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 8 {
			t.Fatalf("expected 8 occurrences, got %d", len(got))
		}
		if !got[0].Start.Equal(rangeStart) || !got[len(got)-1].Start.Equal(rangeEnd) {
			t.Fatalf("unexpected bounds %v - %v", got[0].Start, got[len(got)-1].Start)
		}
	})

	t.Run("keeps wall clock time across daylight saving", func(t *testing.T) {
		t.Parallel()

		loc, err := time.LoadLocation("Europe/Berlin")
		if err != nil {
			t.Skipf("timezone data unavailable: %v", err)
		}
		start := time.Date(2024, time.March, 25, 19, 0, 0, 0, loc)
		endsOn := start.AddDate(0, 0, 14)
		rule := Rule{Frequency: FrequencyWeekly, StartsOn: start, EndsOn: &endsOn}

		got, err := NewEngine(loc).GenerateOccurrences(rule, start, start.Add(time.Hour), GenerateOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, occ := range got {
			if occ.Start.Hour() != 19 {
				t.Fatalf("expected 19:00 local, got %v", occ.Start)
			}
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		endsOn := baseStart.AddDate(0, 0, 7)
		tooFar := baseStart.AddDate(2, 0, 0)
		tests := []struct {
			name string
			rule Rule
			end  time.Time
			want error
		}{
			{name: "unbounded", rule: Rule{Frequency: FrequencyDaily, StartsOn: baseStart}, end: baseEnd, want: ErrInvalidWindow},
			{name: "too long", rule: Rule{Frequency: FrequencyDaily, StartsOn: baseStart, EndsOn: &tooFar}, end: baseEnd, want: ErrInvalidWindow},
			{name: "bad frequency", rule: Rule{StartsOn: baseStart, EndsOn: &endsOn}, end: baseEnd, want: ErrInvalidFrequency},
			{name: "empty duration", rule: Rule{Frequency: FrequencyDaily, StartsOn: baseStart, EndsOn: &endsOn}, end: baseStart, want: ErrInvalidDuration},
		}
		for _, tt := range tests {
			if _, err := engine.GenerateOccurrences(tt.rule, baseStart, tt.end, GenerateOptions{}); !errors.Is(err, tt.want) {
				t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
			}
		}
	})
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	if f, err := ParseFrequency("weekly"); err != nil || f != FrequencyWeekly {
		t.Fatalf("expected weekly, got %v %v", f, err)
	}
	if f, err := ParseFrequency("daily"); err != nil || f.String() != "daily" {
		t.Fatalf("expected daily, got %v %v", f, err)
	}
	if _, err := ParseFrequency("monthly"); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}
