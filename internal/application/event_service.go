package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

// EventRepository captures the persistence interactions needed by the event service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// EventService manages club calendar events. Members read, administrators write.
type EventService struct {
	events      EventRepository
	facilities  FacilityCatalog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(events EventRepository, facilities FacilityCatalog, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, facilities, idGenerator, now, nil)
}

// NewEventServiceWithLogger wires dependencies for event operations with a custom logger.
func NewEventServiceWithLogger(events EventRepository, facilities FacilityCatalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		facilities:  facilities,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// ListEvents returns the club's events overlapping [From, To).
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		return []Event{}, nil
	}

	logger := s.loggerWith(ctx, "ListEvents", "principal_id", params.Principal.MemberID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "events listed")
	}()

	if params.From != nil && params.To != nil && !params.To.After(*params.From) {
		err = validationFailure("to", "to must be after from")
		return
	}

	events, err = s.events.ListEvents(ctx, EventFilter{
		ClubID:       params.Principal.ClubID,
		StartsBefore: params.To,
		EndsAfter:    params.From,
	})
	if err != nil {
		err = mapEventRepoError(err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	return
}

// GetEvent returns an event of the principal's club.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}
	return s.loadEvent(ctx, principal, eventID)
}

// CreateEvent stores a new event.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.MemberID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	input := normalizeEventInput(params.Input)
	if vErr := s.validateEventInput(ctx, params.Principal, input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	event, err = s.events.CreateEvent(ctx, Event{
		ID:          s.idGenerator(),
		ClubID:      params.Principal.ClubID,
		Title:       input.Title,
		Description: input.Description,
		Start:       input.Start,
		End:         input.End,
		AllDay:      input.AllDay,
		FacilityID:  input.FacilityID,
		CreatedBy:   params.Principal.MemberID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = mapEventRepoError(err)
		return
	}
	return
}

// UpdateEvent replaces the mutable fields of an event.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.MemberID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	var existing Event
	existing, err = s.loadEvent(ctx, params.Principal, params.EventID)
	if err != nil {
		return
	}

	input := normalizeEventInput(params.Input)
	if vErr := s.validateEventInput(ctx, params.Principal, input); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Title = input.Title
	existing.Description = input.Description
	existing.Start = input.Start
	existing.End = input.End
	existing.AllDay = input.AllDay
	existing.FacilityID = input.FacilityID
	existing.UpdatedAt = s.now()

	event, err = s.events.UpdateEvent(ctx, existing)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}
	return
}

// DeleteEvent removes an event.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.MemberID,
		"event_id", eventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}
	if _, err = s.loadEvent(ctx, principal, eventID); err != nil {
		return err
	}
	if err = s.events.DeleteEvent(ctx, eventID); err != nil {
		err = mapEventRepoError(err)
		return err
	}
	return nil
}

func (s *EventService) loadEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return Event{}, ErrNotFound
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	if principal.ClubID != "" && event.ClubID != principal.ClubID {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func normalizeEventInput(input EventInput) EventInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.End != nil && input.End.IsZero() {
		input.End = nil
	}
	if input.FacilityID != nil {
		trimmed := strings.TrimSpace(*input.FacilityID)
		if trimmed == "" {
			input.FacilityID = nil
		} else {
			input.FacilityID = &trimmed
		}
	}
	return input
}

func (s *EventService) validateEventInput(ctx context.Context, principal Principal, input EventInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Title == "" {
		vErr.add("title", "title is required")
	} else if len(input.Title) > 200 {
		vErr.add("title", "title must be at most 200 characters")
	}
	if input.Start.IsZero() {
		vErr.add("startTime", "startTime is required")
	}
	if input.End != nil && !input.Start.IsZero() && !input.End.After(input.Start) {
		vErr.add("endTime", "endTime must be after startTime")
	}
	if input.FacilityID != nil && s.facilities != nil {
		facility, err := s.facilities.GetFacility(ctx, *input.FacilityID)
		if err != nil || (principal.ClubID != "" && facility.ClubID != principal.ClubID) {
			vErr.add("facilityId", "facility does not exist")
		}
	}

	return vErr
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return validationFailure("endTime", "endTime must be after startTime")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return validationFailure("facilityId", "facility does not exist")
	}
	return err
}
