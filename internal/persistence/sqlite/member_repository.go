package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

// MemberRepository implements persistence.MemberRepository using SQLite.
type MemberRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
}

// NewMemberRepository creates a new SQLite member repository.
func NewMemberRepository(pool *ConnectionPool) *MemberRepository {
	return &MemberRepository{pool: pool, mapper: NewErrorMapper(), now: time.Now}
}

const memberColumns = `id, club_id, email, display_name, role, password_hash, birth_date, is_active, created_at, updated_at`

// CreateMember inserts a new member. Emails are stored lower-cased.
func (r *MemberRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.ClubID == "" || strings.TrimSpace(member.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	now := formatTime(r.now())
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		member.ID,
		member.ClubID,
		normalizeEmail(member.Email),
		strings.TrimSpace(member.DisplayName),
		member.Role,
		member.PasswordHash,
		nullDate(member.BirthDate),
		boolInt(member.IsActive),
		now,
		now,
	)
	return r.mapper.MapError(err)
}

// UpdateMember replaces the mutable fields of a member.
func (r *MemberRepository) UpdateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || strings.TrimSpace(member.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE members
		SET email = ?, display_name = ?, role = ?, password_hash = ?, birth_date = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		normalizeEmail(member.Email),
		strings.TrimSpace(member.DisplayName),
		member.Role,
		member.PasswordHash,
		nullDate(member.BirthDate),
		boolInt(member.IsActive),
		formatTime(r.now()),
		member.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

// GetMember retrieves a member by ID.
func (r *MemberRepository) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	if id == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	member, err := scanMember(r.pool.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
	if err != nil {
		return persistence.Member{}, r.mapper.MapError(err)
	}
	return member, nil
}

// GetMemberByEmail retrieves a member by email, ignoring case.
func (r *MemberRepository) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	email = normalizeEmail(email)
	if email == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	member, err := scanMember(r.pool.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE email = ?`, email))
	if err != nil {
		return persistence.Member{}, r.mapper.MapError(err)
	}
	return member, nil
}

// ListMembers returns the members of a club ordered by display name.
func (r *MemberRepository) ListMembers(ctx context.Context, clubID string) ([]persistence.Member, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM members WHERE club_id = ? ORDER BY display_name, id
	`, clubID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	members := []persistence.Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		members = append(members, member)
	}
	return members, r.mapper.MapError(rows.Err())
}

// DeleteMember removes a member and, through cascades, their sessions and
// bookings.
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result, persistence.ErrNotFound)
}

func scanMember(row rowScanner) (persistence.Member, error) {
	var (
		member               persistence.Member
		birthDate            sql.NullString
		isActive             int
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&member.ID,
		&member.ClubID,
		&member.Email,
		&member.DisplayName,
		&member.Role,
		&member.PasswordHash,
		&birthDate,
		&isActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Member{}, err
	}
	member.IsActive = isActive != 0

	var err error
	if member.BirthDate, err = parseNullDate("birth_date", birthDate); err != nil {
		return persistence.Member{}, err
	}
	if member.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Member{}, err
	}
	if member.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Member{}, err
	}
	return member, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
