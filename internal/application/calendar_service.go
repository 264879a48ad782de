package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/clubflow/internal/calendar"
	"github.com/example/clubflow/internal/scheduler"
)

// CalendarSources are the repositories a calendar day is assembled from.
type CalendarSources struct {
	Bookings interface {
		ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	}
	Events interface {
		ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	}
	Members interface {
		ListMembers(ctx context.Context, clubID string) ([]Member, error)
	}
	Facilities interface {
		ListFacilities(ctx context.Context, clubID string) ([]Facility, error)
	}
	Clubs ClubRepository
}

// CalendarService builds laid-out calendar days.
type CalendarService struct {
	sources CalendarSources
	layout  scheduler.LayoutConfig
	logger  *slog.Logger
}

// NewCalendarService constructs a calendar service. Zero layout fields fall
// back to scheduler.DefaultLayoutConfig; Location is replaced by the club's
// time zone on every call.
func NewCalendarService(sources CalendarSources, layout scheduler.LayoutConfig, logger *slog.Logger) *CalendarService {
	return &CalendarService{sources: sources, layout: layout, logger: defaultLogger(logger)}
}

// LayoutConfig returns the grid constants used for the principal's club.
func (s *CalendarService) LayoutConfig(ctx context.Context, principal Principal) scheduler.LayoutConfig {
	cfg := s.layout
	cfg.Location = s.clubLocation(ctx, principal.ClubID)
	return cfg
}

// Day returns the bookings, events and birthdays on date laid out into
// columns. A non-empty facilityID limits bookings to that facility and events
// to that facility or to no facility.
func (s *CalendarService) Day(ctx context.Context, principal Principal, date time.Time, facilityID string) (day calendar.Day, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarService is nil")
		return
	}

	facilityID = strings.TrimSpace(facilityID)
	logger := serviceLogger(ctx, s.logger, "CalendarService", "Day",
		"principal_id", principal.MemberID,
		"date", date.Format(time.DateOnly),
		"facility_id", facilityID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build calendar day", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("block_count", len(day.Blocks)).DebugContext(ctx, "calendar day built")
	}()

	if date.IsZero() {
		err = validationFailure("date", "date is required")
		return
	}

	cfg := s.LayoutConfig(ctx, principal)
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, cfg.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var entries []calendar.Entry
	if entries, err = s.bookingEntries(ctx, principal, facilityID, dayStart, dayEnd); err != nil {
		return
	}
	var more []calendar.Entry
	if more, err = s.eventEntries(ctx, principal, facilityID, dayStart, dayEnd); err != nil {
		return
	}
	entries = append(entries, more...)
	if more, err = s.birthdayEntries(ctx, principal); err != nil {
		return
	}
	entries = append(entries, more...)

	day, err = calendar.BuildDay(dayStart, entries, cfg)
	return
}

func (s *CalendarService) bookingEntries(ctx context.Context, principal Principal, facilityID string, dayStart, dayEnd time.Time) ([]calendar.Entry, error) {
	if s.sources.Bookings == nil {
		return nil, nil
	}
	bookings, err := s.sources.Bookings.ListBookings(ctx, BookingFilter{
		ClubID:       principal.ClubID,
		FacilityID:   facilityID,
		StartsBefore: &dayEnd,
		EndsAfter:    &dayStart,
	})
	if err != nil {
		return nil, mapBookingRepoError(err)
	}

	names := make(map[string]string)
	if s.sources.Facilities != nil && len(bookings) > 0 {
		facilities, err := s.sources.Facilities.ListFacilities(ctx, principal.ClubID)
		if err != nil {
			return nil, err
		}
		for _, f := range facilities {
			names[f.ID] = f.Name
		}
	}

	entries := make([]calendar.Entry, 0, len(bookings))
	for _, b := range bookings {
		entries = append(entries, calendar.FromBooking(calendar.Booking{
			ID:           b.ID,
			FacilityID:   b.FacilityID,
			FacilityName: names[b.FacilityID],
			MemberID:     b.MemberID,
			Title:        b.Title,
			Start:        b.Start,
			End:          b.End,
			Status:       b.Status,
		}))
	}
	return entries, nil
}

func (s *CalendarService) eventEntries(ctx context.Context, principal Principal, facilityID string, dayStart, dayEnd time.Time) ([]calendar.Entry, error) {
	if s.sources.Events == nil {
		return nil, nil
	}
	// Events without an end are stored with their start only; widen the
	// lower bound so ones that began late the previous day still show up.
	from := dayStart.Add(-24 * time.Hour)
	events, err := s.sources.Events.ListEvents(ctx, EventFilter{
		ClubID:       principal.ClubID,
		StartsBefore: &dayEnd,
		EndsAfter:    &from,
	})
	if err != nil {
		return nil, mapEventRepoError(err)
	}

	entries := make([]calendar.Entry, 0, len(events))
	for _, e := range events {
		var eventFacility string
		if e.FacilityID != nil {
			eventFacility = *e.FacilityID
		}
		if facilityID != "" && eventFacility != "" && eventFacility != facilityID {
			continue
		}
		entries = append(entries, calendar.FromEvent(calendar.Event{
			ID:         e.ID,
			Title:      e.Title,
			Start:      e.Start,
			End:        e.End,
			AllDay:     e.AllDay,
			FacilityID: eventFacility,
		}))
	}
	return entries, nil
}

func (s *CalendarService) birthdayEntries(ctx context.Context, principal Principal) ([]calendar.Entry, error) {
	if s.sources.Members == nil {
		return nil, nil
	}
	members, err := s.sources.Members.ListMembers(ctx, principal.ClubID)
	if err != nil {
		return nil, mapMemberRepoError(err)
	}

	var entries []calendar.Entry
	for _, m := range members {
		if m.BirthDate == nil || !m.IsActive {
			continue
		}
		entries = append(entries, calendar.FromBirthday(calendar.Birthday{
			MemberID:    m.ID,
			DisplayName: m.DisplayName,
			BirthDate:   *m.BirthDate,
		}))
	}
	return entries, nil
}

func (s *CalendarService) clubLocation(ctx context.Context, clubID string) *time.Location {
	if s.sources.Clubs == nil || clubID == "" {
		return time.UTC
	}
	club, err := s.sources.Clubs.GetClub(ctx, clubID)
	if err != nil {
		serviceLogger(ctx, s.logger, "CalendarService", "clubLocation", "club_id", clubID).
			WarnContext(ctx, "club lookup failed, using UTC", "error", err)
		return time.UTC
	}
	return club.Location()
}
