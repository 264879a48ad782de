package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewEventRepository creates a new SQLite calendar event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

const eventColumns = `id, club_id, title, description, start_time, end_time, all_day, facility_id, created_by, created_at, updated_at`

// CreateEvent inserts a new calendar event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.CalendarEvent) error {
	if event.ID == "" || event.ClubID == "" || strings.TrimSpace(event.Title) == "" {
		return persistence.ErrConstraintViolation
	}
	now := formatTime(r.now())
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.ClubID,
		strings.TrimSpace(event.Title),
		event.Description,
		formatTime(event.Start),
		nullTime(event.End),
		boolInt(event.AllDay),
		nullString(event.FacilityID),
		event.CreatedBy,
		now,
		now,
	)
	return r.mapper.MapError(err)
}

// UpdateEvent replaces the mutable fields of an event.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.CalendarEvent) error {
	if event.ID == "" || strings.TrimSpace(event.Title) == "" {
		return persistence.ErrConstraintViolation
	}
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE calendar_events
		SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?, facility_id = ?, updated_at = ?
		WHERE id = ?
	`,
		strings.TrimSpace(event.Title),
		event.Description,
		formatTime(event.Start),
		nullTime(event.End),
		boolInt(event.AllDay),
		nullString(event.FacilityID),
		formatTime(r.now()),
		event.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.CalendarEvent, error) {
	if id == "" {
		return persistence.CalendarEvent{}, persistence.ErrNotFound
	}
	event, err := scanEvent(r.pool.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id))
	if err != nil {
		return persistence.CalendarEvent{}, r.mapper.MapError(err)
	}
	return event, nil
}

// ListEvents returns events matching filter ordered by start time. An event
// without an end is matched on its start alone.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.CalendarEvent, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ClubID != "" {
		clauses = append(clauses, "club_id = ?")
		args = append(args, filter.ClubID)
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "COALESCE(end_time, start_time) >= ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	query := `SELECT ` + eventColumns + ` FROM calendar_events`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	events := []persistence.CalendarEvent{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		events = append(events, event)
	}
	return events, r.mapper.MapError(rows.Err())
}

// DeleteEvent removes an event.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

func scanEvent(row rowScanner) (persistence.CalendarEvent, error) {
	var (
		event                persistence.CalendarEvent
		start                string
		end, facilityID      sql.NullString
		allDay               int
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&event.ID,
		&event.ClubID,
		&event.Title,
		&event.Description,
		&start,
		&end,
		&allDay,
		&facilityID,
		&event.CreatedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.CalendarEvent{}, err
	}
	event.AllDay = allDay != 0
	event.FacilityID = stringPtr(facilityID)

	var err error
	if event.Start, err = parseTime("start_time", start); err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.End, err = parseNullTime("end_time", end); err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.CalendarEvent{}, err
	}
	return event, nil
}
