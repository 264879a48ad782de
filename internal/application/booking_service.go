package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/clubflow/internal/lock"
	"github.com/example/clubflow/internal/persistence"
	"github.com/example/clubflow/internal/recurrence"
	"github.com/example/clubflow/internal/scheduler"
)

// DefaultLockTimeout bounds how long a booking waits for its facility.
const DefaultLockTimeout = 5 * time.Second

// BookingWriter is the booking view available inside an admission
// transaction.
type BookingWriter interface {
	ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]Booking, error)
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
}

// BookingRepository captures the persistence interactions needed by the service.
type BookingRepository interface {
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)
	// WithinWriteTx runs fn in a transaction that holds the write lock from
	// its first statement. fn may run more than once.
	WithinWriteTx(ctx context.Context, fn func(w BookingWriter) error) error
}

// FacilityCatalog exposes facility lookups.
type FacilityCatalog interface {
	GetFacility(ctx context.Context, id string) (Facility, error)
}

// BookingServiceOptions tunes a BookingService. Zero values select defaults.
type BookingServiceOptions struct {
	LockTimeout time.Duration
	// Clubs resolves the club time zone used to expand series. Nil means UTC.
	Clubs  ClubRepository
	Logger *slog.Logger
}

// BookingService admits, edits and cancels facility bookings.
//
// Every write that can add load to a facility holds that facility's lock
// across a write transaction which re-reads the overlapping bookings and
// re-runs the admission check before writing. Callers that lose a race are
// rejected with ErrCapacityExceeded rather than queued.
type BookingService struct {
	bookings    BookingRepository
	facilities  FacilityCatalog
	clubs       ClubRepository
	locker      lock.Locker
	idGenerator func() string
	now         func() time.Time
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingRepository, facilities FacilityCatalog, locker lock.Locker, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithOptions(bookings, facilities, locker, idGenerator, now, BookingServiceOptions{})
}

// NewBookingServiceWithOptions wires dependencies for booking operations with explicit options.
func NewBookingServiceWithOptions(bookings BookingRepository, facilities FacilityCatalog, locker lock.Locker, idGenerator func() string, now func() time.Time, opts BookingServiceOptions) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return &BookingService{
		bookings:    bookings,
		facilities:  facilities,
		clubs:       opts.Clubs,
		locker:      locker,
		idGenerator: idGenerator,
		now:         now,
		lockTimeout: opts.LockTimeout,
		logger:      defaultLogger(opts.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CheckAvailability reports whether the proposed interval could be booked
// without writing anything. A malformed interval is coerced to the minimum
// booking duration.
func (s *BookingService) CheckAvailability(ctx context.Context, params CheckAvailabilityParams) (availability Availability, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil || s.facilities == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability",
		"principal_id", params.Principal.MemberID,
		"facility_id", params.FacilityID,
		"exclude_booking_id", params.ExcludeBookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "availability check failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"available", availability.Available,
			"current_bookings", availability.CurrentBookings,
		).DebugContext(ctx, "availability checked")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.FacilityID) == "" {
		vErr.add("facilityId", "facilityId is required")
	}
	if params.Start.IsZero() {
		vErr.add("startTime", "startTime is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var facility Facility
	facility, err = s.loadFacility(ctx, params.Principal, params.FacilityID)
	if err != nil {
		return
	}

	proposed := scheduler.Coerce(scheduler.NewInterval(params.Start, params.End), scheduler.MinimumDuration)
	var existing []Booking
	existing, err = s.bookings.ListActiveOverlapping(ctx, facility.ID, proposed.Start, proposed.End)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	result := scheduler.CheckAdmission(facility.ID, proposed, facility.MaxConcurrent, reservations(existing), params.ExcludeBookingID)
	availability = Availability{
		Available:           result.Available,
		MaxConcurrent:       facility.MaxConcurrent,
		CurrentBookings:     result.CurrentBookings,
		ConflictingBookings: conflictingBookings(result, existing),
	}
	return
}

// CreateBooking admits and stores a new booking for the principal.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil || s.facilities == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.MemberID,
		"facility_id", params.Input.FacilityID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	input := normalizeBookingInput(params.Input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var facility Facility
	facility, err = s.loadFacility(ctx, params.Principal, input.FacilityID)
	if err != nil {
		return
	}

	now := s.now()
	candidate := Booking{
		ID:         s.idGenerator(),
		ClubID:     facility.ClubID,
		FacilityID: facility.ID,
		MemberID:   params.Principal.MemberID,
		Title:      input.Title,
		Notes:      input.Notes,
		Start:      input.Start,
		End:        input.End,
		Status:     input.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.withFacilityLock(ctx, facility.ID, func() error {
		return s.bookings.WithinWriteTx(ctx, func(w BookingWriter) error {
			if err := admit(ctx, w, facility, candidate, ""); err != nil {
				return err
			}
			created, err := w.CreateBooking(ctx, candidate)
			if err != nil {
				return err
			}
			booking = created
			return nil
		})
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

// UpdateBooking moves or edits a booking. The booking itself does not count
// against its new interval.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil || s.facilities == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.MemberID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking updated")
	}()

	var existing Booking
	existing, err = s.loadBooking(ctx, params.Principal, params.BookingID)
	if err != nil {
		return
	}
	if !canModify(params.Principal, existing) {
		err = ErrUnauthorized
		return
	}
	if existing.Status == scheduler.StatusCancelled {
		err = validationFailure("status", "cancelled bookings cannot be changed")
		return
	}

	input := params.Input
	if strings.TrimSpace(input.FacilityID) == "" {
		input.FacilityID = existing.FacilityID
	}
	if input.Status == "" {
		input.Status = existing.Status
	}
	input = normalizeBookingInput(input)
	if vErr := validateBookingInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var facility Facility
	facility, err = s.loadFacility(ctx, params.Principal, input.FacilityID)
	if err != nil {
		return
	}

	updated := existing
	updated.FacilityID = facility.ID
	updated.Title = input.Title
	updated.Notes = input.Notes
	updated.Start = input.Start
	updated.End = input.End
	updated.Status = input.Status
	updated.UpdatedAt = s.now()

	err = s.withFacilityLock(ctx, facility.ID, func() error {
		return s.bookings.WithinWriteTx(ctx, func(w BookingWriter) error {
			if err := admit(ctx, w, facility, updated, updated.ID); err != nil {
				return err
			}
			saved, err := w.UpdateBooking(ctx, updated)
			if err != nil {
				return err
			}
			booking = saved
			return nil
		})
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

// CreateSeries expands a recurring booking and admits every occurrence in a
// single transaction. If any occurrence is rejected nothing is stored.
func (s *BookingService) CreateSeries(ctx context.Context, params CreateSeriesParams) (series Series, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil || s.facilities == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSeries",
		"principal_id", params.Principal.MemberID,
		"facility_id", params.Input.FacilityID,
		"frequency", params.Frequency,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("series_id", series.ID, "occurrences", len(series.Bookings)).InfoContext(ctx, "series created")
	}()

	input := normalizeBookingInput(params.Input)
	vErr := validateBookingInput(input)
	frequency, freqErr := recurrence.ParseFrequency(params.Frequency)
	if freqErr != nil {
		vErr.add("frequency", "frequency must be daily or weekly")
	}
	if params.Until.IsZero() {
		vErr.add("until", "until is required")
	} else if !input.Start.IsZero() && params.Until.Before(input.Start) {
		vErr.add("until", "until must not be before startTime")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var facility Facility
	facility, err = s.loadFacility(ctx, params.Principal, input.FacilityID)
	if err != nil {
		return
	}

	seriesID := s.idGenerator()
	until := params.Until
	engine := recurrence.NewEngine(s.clubLocation(ctx, facility.ClubID))
	var occurrences []recurrence.Occurrence
	occurrences, err = engine.GenerateOccurrences(recurrence.Rule{
		SeriesID:  seriesID,
		Frequency: frequency,
		Weekdays:  params.Weekdays,
		StartsOn:  input.Start,
		EndsOn:    &until,
	}, input.Start, input.End, recurrence.GenerateOptions{})
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidWindow) {
			err = validationFailure("until", "series may span at most one year")
		}
		return
	}
	if len(occurrences) == 0 {
		err = validationFailure("until", "series has no occurrences")
		return
	}

	now := s.now()
	candidates := make([]Booking, 0, len(occurrences))
	for _, occurrence := range occurrences {
		id := seriesID
		candidates = append(candidates, Booking{
			ID:         s.idGenerator(),
			ClubID:     facility.ClubID,
			FacilityID: facility.ID,
			MemberID:   params.Principal.MemberID,
			SeriesID:   &id,
			Title:      input.Title,
			Notes:      input.Notes,
			Start:      occurrence.Start,
			End:        occurrence.End,
			Status:     input.Status,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err = s.withFacilityLock(ctx, facility.ID, func() error {
		return s.bookings.WithinWriteTx(ctx, func(w BookingWriter) error {
			created := make([]Booking, 0, len(candidates))
			for _, candidate := range candidates {
				if err := admit(ctx, w, facility, candidate, ""); err != nil {
					return err
				}
				booking, err := w.CreateBooking(ctx, candidate)
				if err != nil {
					return err
				}
				created = append(created, booking)
			}
			series = Series{ID: seriesID, Bookings: created}
			return nil
		})
	})
	if err != nil {
		err = mapBookingRepoError(err)
		series = Series{}
		return
	}
	return
}

// CancelBooking marks a booking cancelled. Cancelling twice is not an error.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.MemberID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	booking, err = s.loadBooking(ctx, principal, bookingID)
	if err != nil {
		return
	}
	if !canModify(principal, booking) {
		err = ErrUnauthorized
		return
	}
	if booking.Status == scheduler.StatusCancelled {
		return
	}

	booking.Status = scheduler.StatusCancelled
	booking.UpdatedAt = s.now()
	booking, err = s.bookings.UpdateBooking(ctx, booking)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

// GetBooking returns a booking of the principal's club.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return Booking{}, fmt.Errorf("booking repository not configured")
	}
	return s.loadBooking(ctx, principal, bookingID)
}

// ListBookings returns the club's bookings that overlap [From, To).
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		return []Booking{}, nil
	}

	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", params.Principal.MemberID,
		"facility_id", params.FacilityID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).DebugContext(ctx, "bookings listed")
	}()

	if params.From != nil && params.To != nil && !params.To.After(*params.From) {
		err = validationFailure("to", "to must be after from")
		return
	}

	bookings, err = s.bookings.ListBookings(ctx, BookingFilter{
		ClubID:           params.Principal.ClubID,
		FacilityID:       strings.TrimSpace(params.FacilityID),
		MemberID:         strings.TrimSpace(params.MemberID),
		StartsBefore:     params.To,
		EndsAfter:        params.From,
		IncludeCancelled: params.IncludeCancelled,
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return
}

// withFacilityLock runs fn while holding the facility's admission lock.
func (s *BookingService) withFacilityLock(ctx context.Context, facilityID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, "facility:"+facilityID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrFacilityBusy, facilityID)
		}
		return err
	}
	defer release()
	return fn()
}

// admit re-runs the admission check against the transaction's view.
func admit(ctx context.Context, w BookingWriter, facility Facility, candidate Booking, excludeID string) error {
	existing, err := w.ListActiveOverlapping(ctx, facility.ID, candidate.Start, candidate.End)
	if err != nil {
		return err
	}
	result := scheduler.CheckAdmission(facility.ID, candidate.Interval(), facility.MaxConcurrent, reservations(existing), excludeID)
	if !result.Available {
		return &AdmissionError{Result: result, Conflicts: conflictingBookings(result, existing)}
	}
	return nil
}

func (s *BookingService) loadFacility(ctx context.Context, principal Principal, facilityID string) (Facility, error) {
	facility, err := s.facilities.GetFacility(ctx, strings.TrimSpace(facilityID))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return Facility{}, validationFailure("facilityId", "facility does not exist")
		}
		return Facility{}, err
	}
	if principal.ClubID != "" && facility.ClubID != principal.ClubID {
		return Facility{}, validationFailure("facilityId", "facility does not exist")
	}
	return facility, nil
}

func (s *BookingService) loadBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return Booking{}, ErrNotFound
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	if principal.ClubID != "" && booking.ClubID != principal.ClubID {
		return Booking{}, ErrNotFound
	}
	return booking, nil
}

func (s *BookingService) clubLocation(ctx context.Context, clubID string) *time.Location {
	if s.clubs == nil {
		return time.UTC
	}
	club, err := s.clubs.GetClub(ctx, clubID)
	if err != nil {
		s.loggerWith(ctx, "clubLocation", "club_id", clubID).WarnContext(ctx, "club lookup failed, using UTC", "error", err)
		return time.UTC
	}
	return club.Location()
}

func canModify(principal Principal, booking Booking) bool {
	return principal.IsAdmin || (principal.MemberID != "" && principal.MemberID == booking.MemberID)
}

func reservations(bookings []Booking) []scheduler.Reservation {
	out := make([]scheduler.Reservation, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, booking.Reservation())
	}
	return out
}

func conflictingBookings(result scheduler.AdmissionResult, existing []Booking) []Booking {
	byID := make(map[string]Booking, len(existing))
	for _, booking := range existing {
		byID[booking.ID] = booking
	}
	out := make([]Booking, 0, len(result.Conflicts))
	for _, conflict := range result.Conflicts {
		if booking, ok := byID[conflict.ID]; ok {
			out = append(out, booking)
		}
	}
	return out
}

func normalizeBookingInput(input BookingInput) BookingInput {
	input.FacilityID = strings.TrimSpace(input.FacilityID)
	input.Title = strings.TrimSpace(input.Title)
	input.Notes = strings.TrimSpace(input.Notes)
	input.Status = scheduler.ReservationStatus(strings.ToLower(strings.TrimSpace(string(input.Status))))
	if input.Status == "" {
		input.Status = scheduler.StatusConfirmed
	}
	return input
}

func validateBookingInput(input BookingInput) *ValidationError {
	vErr := &ValidationError{}

	if input.FacilityID == "" {
		vErr.add("facilityId", "facilityId is required")
	}
	if input.Start.IsZero() {
		vErr.add("startTime", "startTime is required")
	}
	if input.End.IsZero() {
		vErr.add("endTime", "endTime is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.End.After(input.Start) {
		vErr.add("endTime", "endTime must be after startTime")
	}
	if len(input.Title) > 200 {
		vErr.add("title", "title must be at most 200 characters")
	}
	switch input.Status {
	case scheduler.StatusPending, scheduler.StatusConfirmed:
	default:
		vErr.add("status", "status must be pending or confirmed")
	}

	return vErr
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrFacilityBusy):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return validationFailure("endTime", "endTime must be after startTime")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return validationFailure("facilityId", "facility or member does not exist")
	}
	return err
}
