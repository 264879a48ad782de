package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/clubflow/internal/persistence"
)

// MemberRepository captures the persistence operations needed by the member service.
type MemberRepository interface {
	CreateMember(ctx context.Context, creds MemberCredentials) (Member, error)
	GetMember(ctx context.Context, id string) (Member, error)
	// UpdateMember stores creds.Member. An empty PasswordHash keeps the stored one.
	UpdateMember(ctx context.Context, creds MemberCredentials) (Member, error)
	DeleteMember(ctx context.Context, id string) error
	ListMembers(ctx context.Context, clubID string) ([]Member, error)
}

// MemberService orchestrates validation, authorization, and persistence for members.
type MemberService struct {
	members     MemberRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMemberService wires dependencies for the member service.
func NewMemberService(members MemberRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time) *MemberService {
	return NewMemberServiceWithLogger(members, hash, idGenerator, now, nil)
}

// NewMemberServiceWithLogger wires dependencies for the member service with a custom logger.
func NewMemberServiceWithLogger(members MemberRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MemberService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MemberService{
		members:     members,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *MemberService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MemberService", operation, attrs...)
}

// CreateMember validates input and persists a new member for administrators.
func (s *MemberService) CreateMember(ctx context.Context, params CreateMemberParams) (member Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateMember", "principal_id", params.Principal.MemberID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("member_id", member.ID).InfoContext(ctx, "member created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.members == nil {
		err = fmt.Errorf("member repository not configured")
		return
	}

	normalized := normalizeMemberInput(params.Input)
	vErr := validateMemberInput(normalized)
	if normalized.Password == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hash(normalized.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	active := true
	if normalized.IsActive != nil {
		active = *normalized.IsActive
	}
	now := s.now()
	member, err = s.members.CreateMember(ctx, MemberCredentials{
		Member: Member{
			ID:          s.idGenerator(),
			ClubID:      params.Principal.ClubID,
			Email:       normalized.Email,
			DisplayName: normalized.DisplayName,
			IsAdmin:     normalized.IsAdmin,
			BirthDate:   normalized.BirthDate,
			IsActive:    active,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	})
	if err != nil {
		err = mapMemberRepoError(err)
		return
	}
	return
}

// UpdateMember updates a member. Administrators may change any member of
// their club; members may change their own profile and password but not
// their role or active flag.
func (s *MemberService) UpdateMember(ctx context.Context, params UpdateMemberParams) (member Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateMember",
		"principal_id", params.Principal.MemberID,
		"member_id", params.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member updated")
	}()

	self := params.Principal.MemberID != "" && params.Principal.MemberID == params.MemberID
	if !params.Principal.IsAdmin && !self {
		err = ErrUnauthorized
		return
	}
	if s.members == nil {
		err = fmt.Errorf("member repository not configured")
		return
	}

	var existing Member
	existing, err = s.loadMember(ctx, params.Principal, params.MemberID)
	if err != nil {
		return
	}

	normalized := normalizeMemberInput(params.Input)
	vErr := validateMemberInput(normalized)
	if !params.Principal.IsAdmin {
		if normalized.IsAdmin != existing.IsAdmin {
			vErr.add("isAdmin", "only administrators can change roles")
		}
		if normalized.IsActive != nil && *normalized.IsActive != existing.IsActive {
			vErr.add("isActive", "only administrators can change the active flag")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.IsAdmin = normalized.IsAdmin
	updated.BirthDate = normalized.BirthDate
	if normalized.IsActive != nil {
		updated.IsActive = *normalized.IsActive
	}
	updated.UpdatedAt = s.now()

	creds := MemberCredentials{Member: updated}
	if normalized.Password != "" {
		creds.PasswordHash, err = s.hash(normalized.Password)
		if err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
	}

	member, err = s.members.UpdateMember(ctx, creds)
	if err != nil {
		err = mapMemberRepoError(err)
		return
	}
	return
}

// DeleteMember removes a member when requested by an administrator.
func (s *MemberService) DeleteMember(ctx context.Context, principal Principal, memberID string) (err error) {
	if s == nil {
		return fmt.Errorf("MemberService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteMember",
		"principal_id", principal.MemberID,
		"member_id", memberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member deleted")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.members == nil {
		return fmt.Errorf("member repository not configured")
	}
	if memberID == principal.MemberID {
		return validationFailure("id", "administrators cannot delete themselves")
	}
	if _, err = s.loadMember(ctx, principal, memberID); err != nil {
		return err
	}
	if err = s.members.DeleteMember(ctx, memberID); err != nil {
		err = mapMemberRepoError(err)
		return err
	}
	return nil
}

// GetMember returns a member of the principal's club. Members may only read
// their own record.
func (s *MemberService) GetMember(ctx context.Context, principal Principal, memberID string) (Member, error) {
	if s == nil {
		return Member{}, fmt.Errorf("MemberService is nil")
	}
	if !principal.IsAdmin && principal.MemberID != memberID {
		return Member{}, ErrUnauthorized
	}
	if s.members == nil {
		return Member{}, fmt.Errorf("member repository not configured")
	}
	return s.loadMember(ctx, principal, memberID)
}

// ListMembers returns the club's members for administrators, sorted by email.
func (s *MemberService) ListMembers(ctx context.Context, principal Principal) ([]Member, error) {
	if s == nil {
		return nil, fmt.Errorf("MemberService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	if s.members == nil {
		return []Member{}, nil
	}

	members, err := s.members.ListMembers(ctx, principal.ClubID)
	if err != nil {
		return nil, mapMemberRepoError(err)
	}

	out := make([]Member, len(members))
	copy(out, members)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

func (s *MemberService) loadMember(ctx context.Context, principal Principal, memberID string) (Member, error) {
	if strings.TrimSpace(memberID) == "" {
		return Member{}, ErrNotFound
	}
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return Member{}, mapMemberRepoError(err)
	}
	if principal.ClubID != "" && member.ClubID != principal.ClubID {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func normalizeMemberInput(input MemberInput) MemberInput {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.BirthDate != nil {
		if input.BirthDate.IsZero() {
			input.BirthDate = nil
		} else {
			y, m, d := input.BirthDate.Date()
			date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			input.BirthDate = &date
		}
	}
	return input
}

func validateMemberInput(input MemberInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("displayName", "display name is required")
	}

	if input.Password != "" && utf8.RuneCountInString(input.Password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	return vErr
}

func mapMemberRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: email", ErrAlreadyExists)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return validationFailure("id", "member still owns bookings or events")
	}
	return err
}
