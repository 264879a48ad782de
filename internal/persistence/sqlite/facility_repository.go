package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

// FacilityRepository implements persistence.FacilityRepository using SQLite.
type FacilityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewFacilityRepository creates a new SQLite facility repository.
func NewFacilityRepository(pool *ConnectionPool) *FacilityRepository {
	return &FacilityRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

const facilityColumns = `id, club_id, name, location, description, max_concurrent, created_at, updated_at`

// CreateFacility inserts a new facility.
func (r *FacilityRepository) CreateFacility(ctx context.Context, facility persistence.Facility) error {
	if err := validateFacility(facility); err != nil {
		return err
	}
	now := formatTime(r.now())
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO facilities (`+facilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		facility.ID,
		facility.ClubID,
		strings.TrimSpace(facility.Name),
		strings.TrimSpace(facility.Location),
		facility.Description,
		facility.MaxConcurrent,
		now,
		now,
	)
	return r.mapper.MapError(err)
}

// UpdateFacility replaces the mutable fields of a facility.
func (r *FacilityRepository) UpdateFacility(ctx context.Context, facility persistence.Facility) error {
	if err := validateFacility(facility); err != nil {
		return err
	}
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE facilities
		SET name = ?, location = ?, description = ?, max_concurrent = ?, updated_at = ?
		WHERE id = ?
	`,
		strings.TrimSpace(facility.Name),
		strings.TrimSpace(facility.Location),
		facility.Description,
		facility.MaxConcurrent,
		formatTime(r.now()),
		facility.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

// UpsertFacility inserts the facility or refreshes an existing row with the
// same ID. Used when seeding facilities from configuration.
func (r *FacilityRepository) UpsertFacility(ctx context.Context, facility persistence.Facility) error {
	if err := validateFacility(facility); err != nil {
		return err
	}
	now := formatTime(r.now())
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO facilities (`+facilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			description = excluded.description,
			max_concurrent = excluded.max_concurrent,
			updated_at = excluded.updated_at
	`,
		facility.ID,
		facility.ClubID,
		strings.TrimSpace(facility.Name),
		strings.TrimSpace(facility.Location),
		facility.Description,
		facility.MaxConcurrent,
		now,
		now,
	)
	return r.mapper.MapError(err)
}

// GetFacility retrieves a facility by ID.
func (r *FacilityRepository) GetFacility(ctx context.Context, id string) (persistence.Facility, error) {
	if id == "" {
		return persistence.Facility{}, persistence.ErrNotFound
	}
	facility, err := scanFacility(r.pool.db.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id))
	if err != nil {
		return persistence.Facility{}, r.mapper.MapError(err)
	}
	return facility, nil
}

// ListFacilities returns the facilities of a club ordered by name.
func (r *FacilityRepository) ListFacilities(ctx context.Context, clubID string) ([]persistence.Facility, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+facilityColumns+` FROM facilities WHERE club_id = ? ORDER BY name, id
	`, clubID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	facilities := []persistence.Facility{}
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		facilities = append(facilities, facility)
	}
	return facilities, r.mapper.MapError(rows.Err())
}

// DeleteFacility removes a facility together with its bookings.
func (r *FacilityRepository) DeleteFacility(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM facilities WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

func validateFacility(facility persistence.Facility) error {
	if facility.ID == "" || facility.ClubID == "" || strings.TrimSpace(facility.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if facility.MaxConcurrent < 1 {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func scanFacility(row rowScanner) (persistence.Facility, error) {
	var (
		facility             persistence.Facility
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&facility.ID,
		&facility.ClubID,
		&facility.Name,
		&facility.Location,
		&facility.Description,
		&facility.MaxConcurrent,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Facility{}, err
	}
	var err error
	if facility.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Facility{}, err
	}
	if facility.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Facility{}, err
	}
	return facility, nil
}
