package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/clubflow/internal/lock"
	"github.com/example/clubflow/internal/persistence"
	"github.com/example/clubflow/internal/scheduler"
)

// bookingRepoStub keeps bookings in memory. WithinWriteTx stages writes and
// applies them only when fn succeeds, but does not serialize callers.
type bookingRepoStub struct {
	mu       sync.Mutex
	bookings map[string]Booking

	listErr  error
	txCalls  int
	pauseTx  time.Duration
	lastList BookingFilter
}

func newBookingRepoStub(bookings ...Booking) *bookingRepoStub {
	stub := &bookingRepoStub{bookings: make(map[string]Booking)}
	for _, b := range bookings {
		stub.bookings[b.ID] = b
	}
	return stub
}

func (r *bookingRepoStub) snapshot() map[string]Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Booking, len(r.bookings))
	for id, b := range r.bookings {
		out[id] = b
	}
	return out
}

func (r *bookingRepoStub) GetBooking(ctx context.Context, id string) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

func (r *bookingRepoStub) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	r.mu.Lock()
	r.lastList = filter
	r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Booking
	for _, b := range r.snapshot() {
		if filter.ClubID != "" && b.ClubID != filter.ClubID {
			continue
		}
		if filter.FacilityID != "" && b.FacilityID != filter.FacilityID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *bookingRepoStub) ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]Booking, error) {
	return overlapping(r.snapshot(), facilityID, start, end), nil
}

func (r *bookingRepoStub) UpdateBooking(ctx context.Context, booking Booking) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[booking.ID]; !ok {
		return Booking{}, persistence.ErrNotFound
	}
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *bookingRepoStub) WithinWriteTx(ctx context.Context, fn func(w BookingWriter) error) error {
	r.mu.Lock()
	r.txCalls++
	r.mu.Unlock()

	tx := &stagedWriter{base: r.snapshot(), staged: make(map[string]Booking), pause: r.pauseTx}
	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range tx.staged {
		r.bookings[id] = b
	}
	return nil
}

type stagedWriter struct {
	base   map[string]Booking
	staged map[string]Booking
	pause  time.Duration
}

func (w *stagedWriter) view() map[string]Booking {
	out := make(map[string]Booking, len(w.base)+len(w.staged))
	for id, b := range w.base {
		out[id] = b
	}
	for id, b := range w.staged {
		out[id] = b
	}
	return out
}

func (w *stagedWriter) ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]Booking, error) {
	out := overlapping(w.view(), facilityID, start, end)
	if w.pause > 0 {
		time.Sleep(w.pause)
	}
	return out, nil
}

func (w *stagedWriter) CreateBooking(ctx context.Context, booking Booking) (Booking, error) {
	w.staged[booking.ID] = booking
	return booking, nil
}

func (w *stagedWriter) UpdateBooking(ctx context.Context, booking Booking) (Booking, error) {
	w.staged[booking.ID] = booking
	return booking, nil
}

func overlapping(bookings map[string]Booking, facilityID string, start, end time.Time) []Booking {
	var out []Booking
	for _, b := range bookings {
		if b.FacilityID != facilityID || b.Status == scheduler.StatusCancelled {
			continue
		}
		if b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

var bookingDay = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func slot(startHour, endHour int) (time.Time, time.Time) {
	return bookingDay.Add(time.Duration(startHour) * time.Hour), bookingDay.Add(time.Duration(endHour) * time.Hour)
}

func courtFacility(capacity int) Facility {
	return Facility{ID: "court-1", ClubID: "club-1", Name: "Court 1", MaxConcurrent: capacity}
}

func existingBooking(id, memberID string, startHour, endHour int) Booking {
	start, end := slot(startHour, endHour)
	return Booking{
		ID:         id,
		ClubID:     "club-1",
		FacilityID: "court-1",
		MemberID:   memberID,
		Start:      start,
		End:        end,
		Status:     scheduler.StatusConfirmed,
	}
}

func newTestBookingService(repo *bookingRepoStub, facility Facility) *BookingService {
	return NewBookingService(repo, newFacilityRepoStub(facility), lock.NewLocalLocker(), sequentialIDs("booking"), func() time.Time { return bookingDay })
}

func TestBookingService_CheckAvailability(t *testing.T) {
	t.Run("reports the pre-exclusion count while deciding on the rest", func(t *testing.T) {
		repo := newBookingRepoStub(
			existingBooking("b1", "member-1", 10, 12),
			existingBooking("b2", "member-2", 11, 13),
		)
		svc := newTestBookingService(repo, courtFacility(2))

		start, end := slot(10, 12)
		got, err := svc.CheckAvailability(context.Background(), CheckAvailabilityParams{
			Principal:        memberPrincipal,
			FacilityID:       "court-1",
			Start:            start,
			End:              end,
			ExcludeBookingID: "b1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Available {
			t.Fatalf("expected slot to be available when editing b1")
		}
		if got.MaxConcurrent != 2 || got.CurrentBookings != 2 {
			t.Fatalf("expected 2 of 2, got %d of %d", got.CurrentBookings, got.MaxConcurrent)
		}
		if len(got.ConflictingBookings) != 1 || got.ConflictingBookings[0].ID != "b2" {
			t.Fatalf("expected only b2 to conflict, got %+v", got.ConflictingBookings)
		}
	})

	t.Run("full facility is unavailable", func(t *testing.T) {
		repo := newBookingRepoStub(existingBooking("b1", "member-2", 10, 12))
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(11, 12)
		got, err := svc.CheckAvailability(context.Background(), CheckAvailabilityParams{
			Principal: memberPrincipal, FacilityID: "court-1", Start: start, End: end,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Available || got.CurrentBookings != 1 {
			t.Fatalf("expected unavailable with 1 booking, got %+v", got)
		}
	})

	t.Run("touching bookings do not conflict", func(t *testing.T) {
		repo := newBookingRepoStub(existingBooking("b1", "member-2", 10, 12))
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(12, 13)
		got, err := svc.CheckAvailability(context.Background(), CheckAvailabilityParams{
			Principal: memberPrincipal, FacilityID: "court-1", Start: start, End: end,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Available || got.CurrentBookings != 0 {
			t.Fatalf("expected free slot, got %+v", got)
		}
	})

	t.Run("malformed interval is coerced to the minimum duration", func(t *testing.T) {
		repo := newBookingRepoStub(existingBooking("b1", "member-2", 10, 11))
		svc := newTestBookingService(repo, courtFacility(1))

		start, _ := slot(10, 11)
		got, err := svc.CheckAvailability(context.Background(), CheckAvailabilityParams{
			Principal: memberPrincipal, FacilityID: "court-1", Start: start, End: start.Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Available {
			t.Fatalf("expected coerced interval to collide with b1")
		}
	})

	t.Run("unknown facility is a validation error", func(t *testing.T) {
		svc := newTestBookingService(newBookingRepoStub(), courtFacility(1))

		start, end := slot(10, 11)
		_, err := svc.CheckAvailability(context.Background(), CheckAvailabilityParams{
			Principal: memberPrincipal, FacilityID: "missing", Start: start, End: end,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["facilityId"] == "" {
			t.Fatalf("expected facilityId validation error, got %v", err)
		}
	})

	t.Run("facility of another club is hidden", func(t *testing.T) {
		facility := courtFacility(1)
		facility.ClubID = "club-2"
		svc := newTestBookingService(newBookingRepoStub(), facility)

		start, end := slot(10, 11)
		_, err := svc.CheckAvailability(context.Background(), CheckAvailabilityParams{
			Principal: memberPrincipal, FacilityID: "court-1", Start: start, End: end,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Run("stores an admitted booking", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(9, 10)
		booking, err := svc.CreateBooking(context.Background(), CreateBookingParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: " court-1 ", Title: " Training ", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if booking.ID != "booking-1" || booking.MemberID != "member-1" || booking.ClubID != "club-1" {
			t.Fatalf("unexpected booking: %+v", booking)
		}
		if booking.Title != "Training" || booking.Status != scheduler.StatusConfirmed {
			t.Fatalf("expected normalized input, got %+v", booking)
		}
		if _, err := repo.GetBooking(context.Background(), booking.ID); err != nil {
			t.Fatalf("expected booking to be stored: %v", err)
		}
	})

	t.Run("rejects when the facility is full", func(t *testing.T) {
		repo := newBookingRepoStub(existingBooking("b1", "member-2", 9, 11))
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(10, 12)
		_, err := svc.CreateBooking(context.Background(), CreateBookingParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
		})
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		var admissionErr *AdmissionError
		if !errors.As(err, &admissionErr) {
			t.Fatalf("expected AdmissionError, got %T", err)
		}
		if len(admissionErr.Conflicts) != 1 || admissionErr.Conflicts[0].ID != "b1" {
			t.Fatalf("expected b1 as conflict, got %+v", admissionErr.Conflicts)
		}
		if len(repo.snapshot()) != 1 {
			t.Fatalf("expected nothing new to be stored")
		}
	})

	t.Run("cancelled bookings free their slot", func(t *testing.T) {
		cancelled := existingBooking("b1", "member-2", 9, 11)
		cancelled.Status = scheduler.StatusCancelled
		svc := newTestBookingService(newBookingRepoStub(cancelled), courtFacility(1))

		start, end := slot(9, 11)
		if _, err := svc.CreateBooking(context.Background(), CreateBookingParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		svc := newTestBookingService(newBookingRepoStub(), courtFacility(1))

		start, _ := slot(10, 11)
		_, err := svc.CreateBooking(context.Background(), CreateBookingParams{
			Principal: memberPrincipal,
			Input:     BookingInput{Start: start, End: start, Status: "cancelled"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"facilityId", "endTime", "status"} {
			if vErr.FieldErrors[field] == "" {
				t.Fatalf("expected %s error, got %+v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("concurrent requests for the last slot admit exactly one", func(t *testing.T) {
		repo := newBookingRepoStub()
		repo.pauseTx = 5 * time.Millisecond
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(18, 19)
		const callers = 8
		var (
			wg       sync.WaitGroup
			admitted atomic.Int32
			rejected atomic.Int32
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := svc.CreateBooking(context.Background(), CreateBookingParams{
					Principal: Principal{MemberID: fmt.Sprintf("member-%d", i), ClubID: "club-1"},
					Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
				})
				switch {
				case err == nil:
					admitted.Add(1)
				case errors.Is(err, ErrCapacityExceeded):
					rejected.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if admitted.Load() != 1 || rejected.Load() != callers-1 {
			t.Fatalf("expected 1 admitted and %d rejected, got %d and %d", callers-1, admitted.Load(), rejected.Load())
		}
		if got := len(repo.snapshot()); got != 1 {
			t.Fatalf("expected exactly one stored booking, got %d", got)
		}
	})

	t.Run("lock timeout maps to ErrFacilityBusy", func(t *testing.T) {
		svc := NewBookingServiceWithOptions(newBookingRepoStub(), newFacilityRepoStub(courtFacility(1)), busyLocker{}, sequentialIDs("booking"), nil, BookingServiceOptions{LockTimeout: 10 * time.Millisecond})

		start, end := slot(10, 11)
		_, err := svc.CreateBooking(context.Background(), CreateBookingParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
		})
		if !errors.Is(err, ErrFacilityBusy) {
			t.Fatalf("expected ErrFacilityBusy, got %v", err)
		}
	})
}

func TestBookingService_UpdateBooking(t *testing.T) {
	t.Run("moving within its own slot is admitted at full capacity", func(t *testing.T) {
		repo := newBookingRepoStub(
			existingBooking("b1", "member-1", 10, 12),
			existingBooking("b2", "member-2", 10, 12),
		)
		svc := newTestBookingService(repo, courtFacility(2))

		start, end := slot(10, 11)
		updated, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			Principal: memberPrincipal,
			BookingID: "b1",
			Input:     BookingInput{Title: "Shorter", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated.End.Equal(end) || updated.FacilityID != "court-1" || updated.Title != "Shorter" {
			t.Fatalf("unexpected update: %+v", updated)
		}
	})

	t.Run("moving onto a full slot is rejected", func(t *testing.T) {
		repo := newBookingRepoStub(
			existingBooking("b1", "member-1", 8, 9),
			existingBooking("b2", "member-2", 10, 12),
		)
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(10, 11)
		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			Principal: memberPrincipal,
			BookingID: "b1",
			Input:     BookingInput{Start: start, End: end},
		})
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		stored, _ := repo.GetBooking(context.Background(), "b1")
		if stored.Start.Hour() != 8 {
			t.Fatalf("expected b1 to stay unchanged, got %+v", stored)
		}
	})

	t.Run("other members cannot edit", func(t *testing.T) {
		repo := newBookingRepoStub(existingBooking("b1", "member-2", 8, 9))
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(10, 11)
		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			Principal: memberPrincipal,
			BookingID: "b1",
			Input:     BookingInput{Start: start, End: end},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("administrators can edit any booking", func(t *testing.T) {
		repo := newBookingRepoStub(existingBooking("b1", "member-2", 8, 9))
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(10, 11)
		if _, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			Principal: adminPrincipal,
			BookingID: "b1",
			Input:     BookingInput{Start: start, End: end},
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing booking", func(t *testing.T) {
		svc := newTestBookingService(newBookingRepoStub(), courtFacility(1))

		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: memberPrincipal, BookingID: "nope"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBookingService_CreateSeries(t *testing.T) {
	t.Run("creates every weekly occurrence", func(t *testing.T) {
		repo := newBookingRepoStub()
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(18, 19)
		series, err := svc.CreateSeries(context.Background(), CreateSeriesParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Title: "Squad", Start: start, End: end},
			Frequency: "weekly",
			Until:     start.AddDate(0, 0, 21),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(series.Bookings) != 4 {
			t.Fatalf("expected 4 occurrences, got %d", len(series.Bookings))
		}
		for _, b := range series.Bookings {
			if b.SeriesID == nil || *b.SeriesID != series.ID {
				t.Fatalf("expected series id %q on %+v", series.ID, b)
			}
		}
		if repo.txCalls != 1 {
			t.Fatalf("expected one transaction, got %d", repo.txCalls)
		}
	})

	t.Run("stores nothing when one occurrence is rejected", func(t *testing.T) {
		repo := newBookingRepoStub(Booking{
			ID: "blocker", ClubID: "club-1", FacilityID: "court-1", MemberID: "member-2",
			Start:  bookingDay.AddDate(0, 0, 14).Add(18 * time.Hour),
			End:    bookingDay.AddDate(0, 0, 14).Add(19 * time.Hour),
			Status: scheduler.StatusConfirmed,
		})
		svc := newTestBookingService(repo, courtFacility(1))

		start, end := slot(18, 19)
		_, err := svc.CreateSeries(context.Background(), CreateSeriesParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
			Frequency: "weekly",
			Until:     start.AddDate(0, 0, 21),
		})
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		if got := len(repo.snapshot()); got != 1 {
			t.Fatalf("expected only the blocker to remain, got %d bookings", got)
		}
	})

	t.Run("rejects unknown frequency", func(t *testing.T) {
		svc := newTestBookingService(newBookingRepoStub(), courtFacility(1))

		start, end := slot(18, 19)
		_, err := svc.CreateSeries(context.Background(), CreateSeriesParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
			Frequency: "hourly",
			Until:     start.AddDate(0, 0, 7),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["frequency"] == "" {
			t.Fatalf("expected frequency validation error, got %v", err)
		}
	})

	t.Run("rejects series longer than a year", func(t *testing.T) {
		svc := newTestBookingService(newBookingRepoStub(), courtFacility(1))

		start, end := slot(18, 19)
		_, err := svc.CreateSeries(context.Background(), CreateSeriesParams{
			Principal: memberPrincipal,
			Input:     BookingInput{FacilityID: "court-1", Start: start, End: end},
			Frequency: "daily",
			Until:     start.AddDate(2, 0, 0),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["until"] == "" {
			t.Fatalf("expected until validation error, got %v", err)
		}
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	repo := newBookingRepoStub(existingBooking("b1", "member-1", 8, 9))
	svc := newTestBookingService(repo, courtFacility(1))

	cancelled, err := svc.CancelBooking(context.Background(), memberPrincipal, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != scheduler.StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", cancelled.Status)
	}

	again, err := svc.CancelBooking(context.Background(), memberPrincipal, "b1")
	if err != nil || again.Status != scheduler.StatusCancelled {
		t.Fatalf("expected repeated cancel to succeed, got %+v, %v", again, err)
	}

	_, err = svc.CancelBooking(context.Background(), Principal{MemberID: "member-9", ClubID: "club-1"}, "b1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
}

func TestBookingService_ListBookings(t *testing.T) {
	other := existingBooking("b2", "member-2", 8, 9)
	other.ClubID = "club-2"
	repo := newBookingRepoStub(existingBooking("b1", "member-1", 8, 9), other)
	svc := newTestBookingService(repo, courtFacility(1))

	from, to := slot(0, 24)
	bookings, err := svc.ListBookings(context.Background(), ListBookingsParams{
		Principal: memberPrincipal,
		From:      &from,
		To:        &to,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 1 || bookings[0].ID != "b1" {
		t.Fatalf("expected only club-1 booking, got %+v", bookings)
	}
	if repo.lastList.ClubID != "club-1" || repo.lastList.EndsAfter == nil || !repo.lastList.EndsAfter.Equal(from) {
		t.Fatalf("unexpected filter: %+v", repo.lastList)
	}

	if _, err := svc.ListBookings(context.Background(), ListBookingsParams{Principal: memberPrincipal, From: &to, To: &from}); err == nil {
		t.Fatalf("expected error for inverted range")
	}

	if _, err := svc.GetBooking(context.Background(), memberPrincipal, "b2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other club's booking to be hidden, got %v", err)
	}
}
