package calendar

import (
	"fmt"
	"time"

	"github.com/example/clubflow/internal/scheduler"
)

// Day is a laid-out calendar day.
type Day struct {
	Date   time.Time
	Window scheduler.Interval
	Blocks []scheduler.Block[Entry]
}

// BuildDay normalizes entries for day and lays out those that appear on it.
func BuildDay(day time.Time, entries []Entry, cfg scheduler.LayoutConfig) (Day, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	dayRange := calendarDay(day, loc)

	items := make([]scheduler.Item[Entry], 0, len(entries))
	for _, entry := range entries {
		item, ok, err := Normalize(entry, day, cfg)
		if err != nil {
			return Day{}, fmt.Errorf("normalize %s: %w", entry.ID(), err)
		}
		if ok {
			items = append(items, item)
		}
	}

	return Day{
		Date:   dayRange.Start,
		Window: cfg.Window(dayRange.Start),
		Blocks: scheduler.GroupAndLayout(items, cfg),
	}, nil
}
