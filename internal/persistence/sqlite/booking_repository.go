package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool  *ConnectionPool
	store bookingStore
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:  pool,
		store: bookingStore{q: pool.db, mapper: NewErrorMapper(), now: time.Now},
	}
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	return r.store.getBooking(ctx, id)
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	return r.store.listBookings(ctx, filter)
}

// ListActiveOverlapping returns non-cancelled bookings of facilityID that
// overlap [start, end).
func (r *BookingRepository) ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]persistence.Booking, error) {
	return r.store.ListActiveOverlapping(ctx, facilityID, start, end)
}

// UpdateBooking replaces the mutable fields of a booking outside any
// admission transaction. Used for cancellation.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	return r.store.UpdateBooking(ctx, booking)
}

// WithinWriteTx runs fn against a writer bound to an immediate transaction.
// The connection DSN sets _txlock=immediate, so the database write lock is
// held from BEGIN and a concurrent admission cannot interleave between the
// overlap read and the insert.
func (r *BookingRepository) WithinWriteTx(ctx context.Context, fn func(w persistence.BookingWriter) error) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(bookingStore{q: tx, mapper: r.store.mapper, now: r.store.now})
	})
}

// bookingStore runs booking statements against either the pool or a
// transaction.
type bookingStore struct {
	q      querier
	mapper *ErrorMapper
	now    func() time.Time
}

const bookingColumns = `id, club_id, facility_id, member_id, series_id, title, start_time, end_time, status, notes, created_at, updated_at`

func (s bookingStore) getBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	booking, err := scanBooking(s.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return persistence.Booking{}, s.mapper.MapError(err)
	}
	return booking, nil
}

func (s bookingStore) listBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ClubID != "" {
		clauses = append(clauses, "club_id = ?")
		args = append(args, filter.ClubID)
	}
	if filter.FacilityID != "" {
		clauses = append(clauses, "facility_id = ?")
		args = append(args, filter.FacilityID)
	}
	if filter.MemberID != "" {
		clauses = append(clauses, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "end_time > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if !filter.IncludeCancelled {
		clauses = append(clauses, "status != 'cancelled'")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_time, id`
	return s.query(ctx, query, args...)
}

func (s bookingStore) ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]persistence.Booking, error) {
	return s.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE facility_id = ? AND status != 'cancelled' AND start_time < ? AND end_time > ?
		ORDER BY start_time, id
	`, facilityID, formatTime(end), formatTime(start))
}

func (s bookingStore) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.ClubID == "" || booking.FacilityID == "" || booking.MemberID == "" {
		return persistence.ErrConstraintViolation
	}
	now := formatTime(s.now())
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		booking.ID,
		booking.ClubID,
		booking.FacilityID,
		booking.MemberID,
		nullString(booking.SeriesID),
		booking.Title,
		formatTime(booking.Start),
		formatTime(booking.End),
		booking.Status,
		booking.Notes,
		now,
		now,
	)
	return s.mapper.MapError(err)
}

func (s bookingStore) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	result, err := s.q.ExecContext(ctx, `
		UPDATE bookings
		SET facility_id = ?, title = ?, start_time = ?, end_time = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		booking.FacilityID,
		booking.Title,
		formatTime(booking.Start),
		formatTime(booking.End),
		booking.Status,
		booking.Notes,
		formatTime(s.now()),
		booking.ID,
	)
	if err != nil {
		return s.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

func (s bookingStore) query(ctx context.Context, query string, args ...any) ([]persistence.Booking, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	bookings := []persistence.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, s.mapper.MapError(rows.Err())
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking              persistence.Booking
		seriesID             sql.NullString
		start, end           string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&booking.ID,
		&booking.ClubID,
		&booking.FacilityID,
		&booking.MemberID,
		&seriesID,
		&booking.Title,
		&start,
		&end,
		&booking.Status,
		&booking.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.SeriesID = stringPtr(seriesID)

	var err error
	if booking.Start, err = parseTime("start_time", start); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime("end_time", end); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
