package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

type memberRepoStub struct {
	members map[string]Member
	hashes  map[string]string

	createErr error
	deletedID string
}

func newMemberRepoStub(members ...Member) *memberRepoStub {
	stub := &memberRepoStub{members: make(map[string]Member), hashes: make(map[string]string)}
	for _, m := range members {
		stub.members[m.ID] = m
	}
	return stub
}

func (r *memberRepoStub) CreateMember(ctx context.Context, creds MemberCredentials) (Member, error) {
	if r.createErr != nil {
		return Member{}, r.createErr
	}
	r.members[creds.Member.ID] = creds.Member
	r.hashes[creds.Member.ID] = creds.PasswordHash
	return creds.Member, nil
}

func (r *memberRepoStub) GetMember(ctx context.Context, id string) (Member, error) {
	member, ok := r.members[id]
	if !ok {
		return Member{}, persistence.ErrNotFound
	}
	return member, nil
}

func (r *memberRepoStub) UpdateMember(ctx context.Context, creds MemberCredentials) (Member, error) {
	r.members[creds.Member.ID] = creds.Member
	if creds.PasswordHash != "" {
		r.hashes[creds.Member.ID] = creds.PasswordHash
	}
	return creds.Member, nil
}

func (r *memberRepoStub) DeleteMember(ctx context.Context, id string) error {
	r.deletedID = id
	delete(r.members, id)
	return nil
}

func (r *memberRepoStub) ListMembers(ctx context.Context, clubID string) ([]Member, error) {
	var out []Member
	for _, m := range r.members {
		if m.ClubID == clubID {
			out = append(out, m)
		}
	}
	return out, nil
}

func prefixHasher(password string) (string, error) {
	return "hashed:" + password, nil
}

func TestMemberService_CreateMember(t *testing.T) {
	now := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewMemberService(newMemberRepoStub(), prefixHasher, nil, nil)

		_, err := svc.CreateMember(context.Background(), CreateMemberParams{Principal: memberPrincipal})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates input fields including email format", func(t *testing.T) {
		svc := NewMemberService(newMemberRepoStub(), prefixHasher, nil, nil)

		_, err := svc.CreateMember(context.Background(), CreateMemberParams{
			Principal: adminPrincipal,
			Input:     MemberInput{Email: "not-an-email", Password: "short"},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"email", "displayName", "password"} {
			if vErr.FieldErrors[field] == "" {
				t.Fatalf("expected %s error, got %+v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("persists members with a hashed password", func(t *testing.T) {
		repo := newMemberRepoStub()
		svc := NewMemberService(repo, prefixHasher, func() string { return "member-9" }, func() time.Time { return now })

		birth := time.Date(1992, time.February, 29, 13, 0, 0, 0, time.FixedZone("X", 3600))
		member, err := svc.CreateMember(context.Background(), CreateMemberParams{
			Principal: adminPrincipal,
			Input: MemberInput{
				Email:       " Alice@Example.COM ",
				DisplayName: " Alice ",
				Password:    "correct horse",
				BirthDate:   &birth,
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if member.ID != "member-9" || member.ClubID != "club-1" || !member.IsActive {
			t.Fatalf("unexpected member: %+v", member)
		}
		if member.Email != "alice@example.com" || member.DisplayName != "Alice" {
			t.Fatalf("expected normalized fields, got %+v", member)
		}
		if member.BirthDate == nil || member.BirthDate.Day() != 29 || member.BirthDate.Hour() != 0 {
			t.Fatalf("expected birth date truncated to the day, got %v", member.BirthDate)
		}
		if repo.hashes["member-9"] != "hashed:correct horse" {
			t.Fatalf("expected hashed password to be stored, got %q", repo.hashes["member-9"])
		}
	})

	t.Run("maps duplicate email violations to sentinel errors", func(t *testing.T) {
		repo := newMemberRepoStub()
		repo.createErr = persistence.ErrDuplicate
		svc := NewMemberService(repo, prefixHasher, nil, nil)

		_, err := svc.CreateMember(context.Background(), CreateMemberParams{
			Principal: adminPrincipal,
			Input:     MemberInput{Email: "bob@example.com", DisplayName: "Bob", Password: "long enough"},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestMemberService_UpdateMember(t *testing.T) {
	existing := Member{ID: "member-1", ClubID: "club-1", Email: "m@example.com", DisplayName: "M", IsActive: true}

	t.Run("members can update their own profile and password", func(t *testing.T) {
		repo := newMemberRepoStub(existing)
		svc := NewMemberService(repo, prefixHasher, nil, nil)

		updated, err := svc.UpdateMember(context.Background(), UpdateMemberParams{
			Principal: memberPrincipal,
			MemberID:  "member-1",
			Input:     MemberInput{Email: "m@example.com", DisplayName: "Em", Password: "new password"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.DisplayName != "Em" || repo.hashes["member-1"] != "hashed:new password" {
			t.Fatalf("unexpected update: %+v / %q", updated, repo.hashes["member-1"])
		}
	})

	t.Run("members cannot promote themselves", func(t *testing.T) {
		svc := NewMemberService(newMemberRepoStub(existing), prefixHasher, nil, nil)

		_, err := svc.UpdateMember(context.Background(), UpdateMemberParams{
			Principal: memberPrincipal,
			MemberID:  "member-1",
			Input:     MemberInput{Email: "m@example.com", DisplayName: "M", IsAdmin: true},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["isAdmin"] == "" {
			t.Fatalf("expected isAdmin validation error, got %v", err)
		}
	})

	t.Run("members cannot edit others", func(t *testing.T) {
		svc := NewMemberService(newMemberRepoStub(existing), prefixHasher, nil, nil)

		_, err := svc.UpdateMember(context.Background(), UpdateMemberParams{
			Principal: Principal{MemberID: "member-2", ClubID: "club-1"},
			MemberID:  "member-1",
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("administrators can disable members", func(t *testing.T) {
		repo := newMemberRepoStub(existing)
		svc := NewMemberService(repo, prefixHasher, nil, nil)

		inactive := false
		updated, err := svc.UpdateMember(context.Background(), UpdateMemberParams{
			Principal: adminPrincipal,
			MemberID:  "member-1",
			Input:     MemberInput{Email: "m@example.com", DisplayName: "M", IsActive: &inactive},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.IsActive {
			t.Fatalf("expected member to be disabled")
		}
		if _, ok := repo.hashes["member-1"]; ok {
			t.Fatalf("expected password to stay untouched")
		}
	})

	t.Run("propagates ErrNotFound when the member is missing", func(t *testing.T) {
		svc := NewMemberService(newMemberRepoStub(), prefixHasher, nil, nil)

		_, err := svc.UpdateMember(context.Background(), UpdateMemberParams{Principal: adminPrincipal, MemberID: "ghost"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemberService_ListAndGet(t *testing.T) {
	repo := newMemberRepoStub(
		Member{ID: "b", ClubID: "club-1", Email: "zed@example.com"},
		Member{ID: "a", ClubID: "club-1", Email: "Amy@example.com"},
		Member{ID: "c", ClubID: "club-2", Email: "other@example.com"},
	)
	svc := NewMemberService(repo, prefixHasher, nil, nil)

	if _, err := svc.ListMembers(context.Background(), memberPrincipal); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	members, err := svc.ListMembers(context.Background(), adminPrincipal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 || members[0].ID != "a" || members[1].ID != "b" {
		t.Fatalf("expected members sorted by email, got %+v", members)
	}

	if _, err := svc.GetMember(context.Background(), adminPrincipal, "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other club's member to be hidden, got %v", err)
	}
	if _, err := svc.GetMember(context.Background(), memberPrincipal, "a"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMemberService_DeleteMember(t *testing.T) {
	repo := newMemberRepoStub(Member{ID: "member-1", ClubID: "club-1"}, Member{ID: "admin-1", ClubID: "club-1", IsAdmin: true})
	svc := NewMemberService(repo, prefixHasher, nil, nil)

	if err := svc.DeleteMember(context.Background(), memberPrincipal, "member-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var vErr *ValidationError
	if err := svc.DeleteMember(context.Background(), adminPrincipal, "admin-1"); !errors.As(err, &vErr) {
		t.Fatalf("expected self-delete to be rejected, got %v", err)
	}
	if err := svc.DeleteMember(context.Background(), adminPrincipal, "member-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.deletedID != "member-1" {
		t.Fatalf("expected member-1 to be deleted, got %q", repo.deletedID)
	}
	if err := svc.DeleteMember(context.Background(), adminPrincipal, "member-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
