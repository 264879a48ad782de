package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultSessionTTL applies when the configured lifetime is not positive.
const DefaultSessionTTL = 12 * time.Hour

// CredentialStore looks up members for sign-in and session checks.
type CredentialStore interface {
	GetMemberCredentialsByEmail(ctx context.Context, email string) (MemberCredentials, error)
	GetMember(ctx context.Context, id string) (Member, error)
}

// SessionRepository stores issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService signs members in and keeps their opaque session tokens valid.
type AuthService struct {
	members  CredentialStore
	sessions SessionRepository
	verify   PasswordVerifier
	newToken func() string
	now      func() time.Time
	ttl      time.Duration
	logger   *slog.Logger
}

// NewAuthService constructs an AuthService that logs to slog.Default.
func NewAuthService(members CredentialStore, sessions SessionRepository, verify PasswordVerifier, newToken func() string, now func() time.Time, ttl time.Duration) *AuthService {
	return NewAuthServiceWithLogger(members, sessions, verify, newToken, now, ttl, nil)
}

// NewAuthServiceWithLogger constructs an AuthService. A nil verifier selects
// the argon2id VerifyPassword.
func NewAuthServiceWithLogger(members CredentialStore, sessions SessionRepository, verify PasswordVerifier, newToken func() string, now func() time.Time, ttl time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if newToken == nil {
		newToken = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		members:  members,
		sessions: sessions,
		verify:   verify,
		newToken: newToken,
		now:      now,
		ttl:      ttl,
		logger:   defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready(needMembers, needSessions bool) error {
	switch {
	case s == nil:
		return fmt.Errorf("AuthService is nil")
	case needMembers && s.members == nil:
		return fmt.Errorf("credential store not configured")
	case needSessions && s.sessions == nil:
		return fmt.Errorf("session repository not configured")
	}
	return nil
}

// Authenticate checks an email and password pair and issues a session.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.ready(true, false); err != nil {
		return
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "sign-in rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member signed in", "member_id", result.Member.ID, "club_id", result.Member.ClubID)
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	creds, lookupErr := s.members.GetMemberCredentialsByEmail(ctx, email)
	switch {
	case errors.Is(lookupErr, ErrNotFound):
		err = ErrInvalidCredentials
		return
	case lookupErr != nil:
		err = lookupErr
		return
	}
	if !creds.Member.IsActive {
		err = ErrAccountDisabled
		return
	}
	if s.verify(creds.PasswordHash, params.Password) != nil {
		err = ErrInvalidCredentials
		return
	}

	session, err := s.issue(ctx, creds.Member.ID, params.Fingerprint)
	if err != nil {
		return
	}
	result = AuthenticateResult{Member: creds.Member, Session: session}
	return
}

// issue stores a fresh session for memberID, pruning expired ones first.
// Without a session repository the session is returned unsaved.
func (s *AuthService) issue(ctx context.Context, memberID, fingerprint string) (Session, error) {
	now := s.now()
	session := Session{
		ID:          s.newToken(),
		MemberID:    memberID,
		Token:       s.newToken(),
		Fingerprint: strings.TrimSpace(fingerprint),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if session.Token == "" {
		session.Token = session.ID
	}
	if s.sessions == nil {
		return session, nil
	}
	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return Session{}, err
	}
	return s.sessions.CreateSession(ctx, session)
}

// liveSession loads the session for token and rejects revoked or expired
// ones. A missing session is reported as missing.
func (s *AuthService) liveSession(ctx context.Context, token string, missing error) (Session, error) {
	if token == "" {
		return Session{}, missing
	}
	session, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Session{}, missing
	}
	if err != nil {
		return Session{}, err
	}
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return Session{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}

// activeMember loads the session owner. Deleted members are unauthorized and
// deactivated members are disabled.
func (s *AuthService) activeMember(ctx context.Context, memberID string) (Member, error) {
	member, err := s.members.GetMember(ctx, memberID)
	if errors.Is(err, ErrNotFound) {
		return Member{}, ErrUnauthorized
	}
	if err != nil {
		return Member{}, err
	}
	if !member.IsActive {
		return Member{}, ErrAccountDisabled
	}
	return member, nil
}

// RefreshSession rotates the token of a live session and restarts its
// lifetime. Sessions of members deactivated since sign-in cannot be refreshed.
func (s *AuthService) RefreshSession(ctx context.Context, params RefreshSessionParams) (result RefreshSessionResult, err error) {
	if err = s.ready(false, true); err != nil {
		return
	}

	token := strings.TrimSpace(params.Token)
	logger := s.loggerWith(ctx, "RefreshSession")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session refresh rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session refreshed", "session_id", result.Session.ID, "member_id", result.Session.MemberID)
	}()

	session, err := s.liveSession(ctx, token, ErrInvalidCredentials)
	if err != nil {
		return
	}
	if s.members != nil {
		if _, err = s.activeMember(ctx, session.MemberID); err != nil {
			return
		}
	}

	now := s.now()
	if rotated := s.newToken(); rotated != "" {
		session.Token = rotated
	}
	if fp := strings.TrimSpace(params.Fingerprint); fp != "" {
		session.Fingerprint = fp
	}
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.ttl)

	if session, err = s.sessions.UpdateSession(ctx, session); err != nil {
		return
	}
	result = RefreshSessionResult{Session: session}
	return
}

// RevokeSession signs a session out. Unknown tokens yield
// ErrInvalidCredentials.
func (s *AuthService) RevokeSession(ctx context.Context, token string) (err error) {
	if err = s.ready(false, true); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "RevokeSession")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session revocation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session revoked")
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredentials
	}

	now := s.now()
	if _, err = s.sessions.RevokeSession(ctx, token, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return err
	}
	return s.sessions.DeleteExpiredSessions(ctx, now)
}

// ValidateSession resolves a bearer token to the principal it acts for.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.ready(true, true); err != nil {
		return
	}

	token = strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "session validated", "member_id", principal.MemberID)
	}()

	if token == "" {
		err = ErrInvalidCredentials
		return
	}
	session, err := s.liveSession(ctx, token, ErrUnauthorized)
	if err != nil {
		return
	}
	member, err := s.activeMember(ctx, session.MemberID)
	if err != nil {
		return
	}

	principal = Principal{MemberID: member.ID, ClubID: member.ClubID, IsAdmin: member.IsAdmin}
	return
}
