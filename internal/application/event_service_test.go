package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

type eventRepoStub struct {
	events     map[string]Event
	lastFilter EventFilter
	deletedID  string
}

func newEventRepoStub(events ...Event) *eventRepoStub {
	stub := &eventRepoStub{events: make(map[string]Event)}
	for _, e := range events {
		stub.events[e.ID] = e
	}
	return stub
}

func (r *eventRepoStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepoStub) GetEvent(ctx context.Context, id string) (Event, error) {
	event, ok := r.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (r *eventRepoStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepoStub) DeleteEvent(ctx context.Context, id string) error {
	r.deletedID = id
	delete(r.events, id)
	return nil
}

func (r *eventRepoStub) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	r.lastFilter = filter
	var out []Event
	for _, e := range r.events {
		if e.ClubID == filter.ClubID {
			out = append(out, e)
		}
	}
	return out, nil
}

var eventStart = time.Date(2026, time.May, 2, 15, 0, 0, 0, time.UTC)

func TestEventService_CreateEvent(t *testing.T) {
	now := func() time.Time { return eventStart.Add(-24 * time.Hour) }

	t.Run("members cannot create events", func(t *testing.T) {
		svc := NewEventService(newEventRepoStub(), nil, nil, now)

		_, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: memberPrincipal,
			Input:     EventInput{Title: "Summer party", Start: eventStart},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("stores an open-ended event", func(t *testing.T) {
		repo := newEventRepoStub()
		svc := NewEventService(repo, newFacilityRepoStub(courtFacility(1)), func() string { return "event-1" }, now)

		facilityID := " court-1 "
		event, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: adminPrincipal,
			Input:     EventInput{Title: " Summer party ", Start: eventStart, FacilityID: &facilityID},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.ID != "event-1" || event.ClubID != "club-1" || event.CreatedBy != "admin-1" {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.Title != "Summer party" || event.End != nil {
			t.Fatalf("expected trimmed title and no end, got %+v", event)
		}
		if event.FacilityID == nil || *event.FacilityID != "court-1" {
			t.Fatalf("expected trimmed facility id, got %v", event.FacilityID)
		}
	})

	t.Run("validates fields", func(t *testing.T) {
		svc := NewEventService(newEventRepoStub(), newFacilityRepoStub(), nil, now)

		end := eventStart.Add(-time.Hour)
		missing := "nowhere"
		_, err := svc.CreateEvent(context.Background(), CreateEventParams{
			Principal: adminPrincipal,
			Input:     EventInput{Start: eventStart, End: &end, FacilityID: &missing},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"title", "endTime", "facilityId"} {
			if vErr.FieldErrors[field] == "" {
				t.Fatalf("expected %s error, got %+v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestEventService_UpdateAndDelete(t *testing.T) {
	existing := Event{ID: "event-1", ClubID: "club-1", Title: "Old", Start: eventStart}
	foreign := Event{ID: "event-2", ClubID: "club-2", Title: "Elsewhere", Start: eventStart}
	repo := newEventRepoStub(existing, foreign)
	svc := NewEventService(repo, nil, nil, func() time.Time { return eventStart })

	end := eventStart.Add(2 * time.Hour)
	updated, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
		Principal: adminPrincipal,
		EventID:   "event-1",
		Input:     EventInput{Title: "New", Start: eventStart, End: &end},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Title != "New" || updated.End == nil || !updated.End.Equal(end) {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
		Principal: adminPrincipal,
		EventID:   "event-2",
		Input:     EventInput{Title: "Mine now", Start: eventStart},
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other club's event to be hidden, got %v", err)
	}

	if err := svc.DeleteEvent(context.Background(), memberPrincipal, "event-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.DeleteEvent(context.Background(), adminPrincipal, "event-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.deletedID != "event-1" {
		t.Fatalf("expected event-1 to be deleted, got %q", repo.deletedID)
	}
	if err := svc.DeleteEvent(context.Background(), adminPrincipal, "event-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestEventService_ListEvents(t *testing.T) {
	repo := newEventRepoStub(Event{ID: "event-1", ClubID: "club-1", Title: "Party", Start: eventStart})
	svc := NewEventService(repo, nil, nil, nil)

	from := eventStart.Add(-time.Hour)
	to := eventStart.Add(time.Hour)
	events, err := svc.ListEvents(context.Background(), ListEventsParams{Principal: memberPrincipal, From: &from, To: &to})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if repo.lastFilter.ClubID != "club-1" || repo.lastFilter.StartsBefore == nil || !repo.lastFilter.StartsBefore.Equal(to) {
		t.Fatalf("unexpected filter: %+v", repo.lastFilter)
	}
}
