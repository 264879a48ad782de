package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

// ClubRepository implements persistence.ClubRepository using SQLite.
type ClubRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewClubRepository creates a new SQLite club repository.
func NewClubRepository(pool *ConnectionPool) *ClubRepository {
	return &ClubRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

// UpsertClub inserts the club or updates its name and time zone.
func (r *ClubRepository) UpsertClub(ctx context.Context, club persistence.Club) error {
	if strings.TrimSpace(club.ID) == "" || strings.TrimSpace(club.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	if club.TimeZone == "" {
		club.TimeZone = "UTC"
	}
	now := formatTime(r.now())
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO clubs (id, name, time_zone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, time_zone = excluded.time_zone, updated_at = excluded.updated_at
	`, club.ID, club.Name, club.TimeZone, now, now)
	return r.mapper.MapError(err)
}

// GetClub retrieves a club by ID.
func (r *ClubRepository) GetClub(ctx context.Context, id string) (persistence.Club, error) {
	var (
		club                 persistence.Club
		createdAt, updatedAt string
	)
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, time_zone, created_at, updated_at FROM clubs WHERE id = ?
	`, id).Scan(&club.ID, &club.Name, &club.TimeZone, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Club{}, r.mapper.MapError(err)
	}
	if club.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Club{}, err
	}
	if club.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Club{}, err
	}
	return club, nil
}
