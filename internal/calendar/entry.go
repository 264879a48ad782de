// Package calendar turns the different things shown on a club calendar into
// a single interval-bearing form for the scheduler layout.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/clubflow/internal/scheduler"
)

// Kind discriminates Entry payloads.
type Kind string

const (
	KindBooking  Kind = "booking"
	KindEvent    Kind = "event"
	KindBirthday Kind = "birthday"
)

// ErrInvalidEntry is returned when an entry cannot be placed on a day.
var ErrInvalidEntry = errors.New("calendar: invalid entry")

// defaultEventLength applies to events saved without an end.
const defaultEventLength = time.Hour

// Booking is a facility booking shown on the calendar.
type Booking struct {
	ID           string
	FacilityID   string
	FacilityName string
	MemberID     string
	Title        string
	Start        time.Time
	End          time.Time
	Status       scheduler.ReservationStatus
}

// Event is a club calendar event. End is optional; EndClock carries an end
// given only as a wall clock time ("18:30") on the start's date.
type Event struct {
	ID         string
	Title      string
	Start      time.Time
	End        *time.Time
	EndClock   string
	AllDay     bool
	FacilityID string
}

// Birthday marks a member's birthday. Only month and day of BirthDate matter.
type Birthday struct {
	MemberID    string
	DisplayName string
	BirthDate   time.Time
}

// Entry holds exactly one of Booking, Event or Birthday, selected by Kind.
type Entry struct {
	Kind     Kind
	Booking  *Booking
	Event    *Event
	Birthday *Birthday
}

// FromBooking wraps b in an Entry.
func FromBooking(b Booking) Entry {
	return Entry{Kind: KindBooking, Booking: &b}
}

// FromEvent wraps e in an Entry.
func FromEvent(e Event) Entry {
	return Entry{Kind: KindEvent, Event: &e}
}

// FromBirthday wraps b in an Entry.
func FromBirthday(b Birthday) Entry {
	return Entry{Kind: KindBirthday, Birthday: &b}
}

// ID returns a calendar-unique identifier for the entry.
func (e Entry) ID() string {
	switch {
	case e.Kind == KindBooking && e.Booking != nil:
		return "booking:" + e.Booking.ID
	case e.Kind == KindEvent && e.Event != nil:
		return "event:" + e.Event.ID
	case e.Kind == KindBirthday && e.Birthday != nil:
		return "birthday:" + e.Birthday.MemberID
	}
	return ""
}

// Title returns the label to render.
func (e Entry) Title() string {
	switch {
	case e.Kind == KindBooking && e.Booking != nil:
		if e.Booking.Title != "" {
			return e.Booking.Title
		}
		return e.Booking.FacilityName
	case e.Kind == KindEvent && e.Event != nil:
		return e.Event.Title
	case e.Kind == KindBirthday && e.Birthday != nil:
		return e.Birthday.DisplayName
	}
	return ""
}

// Normalize converts entry into a layout item for day. ok is false when the
// entry does not appear on that day (or is a cancelled booking). Malformed
// bookings and events are coerced to the minimum duration rather than
// rejected; only structurally broken entries return ErrInvalidEntry.
func Normalize(entry Entry, day time.Time, cfg scheduler.LayoutConfig) (item scheduler.Item[Entry], ok bool, err error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	dayRange := calendarDay(day, loc)

	var interval scheduler.Interval
	switch entry.Kind {
	case KindBooking:
		if entry.Booking == nil {
			return item, false, fmt.Errorf("%w: booking payload missing", ErrInvalidEntry)
		}
		if entry.Booking.Status == scheduler.StatusCancelled {
			return item, false, nil
		}
		interval = scheduler.Coerce(scheduler.Interval{Start: entry.Booking.Start, End: entry.Booking.End}, cfg.MinDuration)
	case KindEvent:
		if entry.Event == nil {
			return item, false, fmt.Errorf("%w: event payload missing", ErrInvalidEntry)
		}
		interval, err = eventInterval(*entry.Event, cfg, loc)
		if err != nil {
			return item, false, err
		}
	case KindBirthday:
		if entry.Birthday == nil {
			return item, false, fmt.Errorf("%w: birthday payload missing", ErrInvalidEntry)
		}
		if !isBirthday(entry.Birthday.BirthDate, dayRange.Start) {
			return item, false, nil
		}
		interval = cfg.Window(dayRange.Start)
	default:
		return item, false, fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, entry.Kind)
	}

	if !interval.Overlaps(dayRange) {
		return item, false, nil
	}
	// Entries spilling over from the previous day are laid out from midnight.
	if interval.Start.Before(dayRange.Start) {
		interval.Start = dayRange.Start
	}
	return scheduler.Item[Entry]{Interval: interval, Payload: entry}, true, nil
}

func eventInterval(event Event, cfg scheduler.LayoutConfig, loc *time.Location) (scheduler.Interval, error) {
	if event.Start.IsZero() {
		return scheduler.Interval{}, fmt.Errorf("%w: event %s has no start", ErrInvalidEntry, event.ID)
	}
	if event.AllDay {
		return cfg.Window(event.Start), nil
	}

	end := event.Start.Add(defaultEventLength)
	switch {
	case event.End != nil && !event.End.IsZero():
		end = *event.End
	case strings.TrimSpace(event.EndClock) != "":
		clock, err := time.Parse("15:04", strings.TrimSpace(event.EndClock))
		if err != nil {
			return scheduler.Interval{}, fmt.Errorf("%w: event %s end %q: %v", ErrInvalidEntry, event.ID, event.EndClock, err)
		}
		local := event.Start.In(loc)
		y, m, d := local.Date()
		end = time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc)
	}
	return scheduler.Coerce(scheduler.Interval{Start: event.Start, End: end}, cfg.MinDuration), nil
}

func calendarDay(day time.Time, loc *time.Location) scheduler.Interval {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return scheduler.Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// isBirthday matches month and day. Members born on 29 February celebrate on
// the 28th in non-leap years.
func isBirthday(birthDate, day time.Time) bool {
	if birthDate.IsZero() {
		return false
	}
	month, date := birthDate.Month(), birthDate.Day()
	if month == time.February && date == 29 && !isLeap(day.Year()) {
		date = 28
	}
	return day.Month() == month && day.Day() == date
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
