package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/clubflow/internal/persistence"
)

type facilityRepoStub struct {
	facilities map[string]Facility

	createErr error
	updateErr error
	deleteErr error
	listErr   error

	upserted  []Facility
	deletedID string
}

func newFacilityRepoStub(facilities ...Facility) *facilityRepoStub {
	stub := &facilityRepoStub{facilities: make(map[string]Facility)}
	for _, f := range facilities {
		stub.facilities[f.ID] = f
	}
	return stub
}

func (r *facilityRepoStub) CreateFacility(ctx context.Context, facility Facility) (Facility, error) {
	if r.createErr != nil {
		return Facility{}, r.createErr
	}
	r.facilities[facility.ID] = facility
	return facility, nil
}

func (r *facilityRepoStub) GetFacility(ctx context.Context, id string) (Facility, error) {
	facility, ok := r.facilities[id]
	if !ok {
		return Facility{}, persistence.ErrNotFound
	}
	return facility, nil
}

func (r *facilityRepoStub) UpdateFacility(ctx context.Context, facility Facility) (Facility, error) {
	if r.updateErr != nil {
		return Facility{}, r.updateErr
	}
	r.facilities[facility.ID] = facility
	return facility, nil
}

func (r *facilityRepoStub) UpsertFacility(ctx context.Context, facility Facility) (Facility, error) {
	r.upserted = append(r.upserted, facility)
	r.facilities[facility.ID] = facility
	return facility, nil
}

func (r *facilityRepoStub) DeleteFacility(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deletedID = id
	delete(r.facilities, id)
	return nil
}

func (r *facilityRepoStub) ListFacilities(ctx context.Context, clubID string) ([]Facility, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Facility
	for _, f := range r.facilities {
		if f.ClubID == clubID {
			out = append(out, f)
		}
	}
	return out, nil
}

type clubRepoStub struct {
	clubs map[string]Club
}

func (c *clubRepoStub) UpsertClub(ctx context.Context, club Club) error {
	if c.clubs == nil {
		c.clubs = make(map[string]Club)
	}
	c.clubs[club.ID] = club
	return nil
}

func (c *clubRepoStub) GetClub(ctx context.Context, id string) (Club, error) {
	club, ok := c.clubs[id]
	if !ok {
		return Club{}, ErrNotFound
	}
	return club, nil
}

var (
	adminPrincipal  = Principal{MemberID: "admin-1", ClubID: "club-1", IsAdmin: true}
	memberPrincipal = Principal{MemberID: "member-1", ClubID: "club-1"}
)

func TestFacilityService_CreateFacility(t *testing.T) {
	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewFacilityService(nil, nil, nil, nil)

		_, err := svc.CreateFacility(context.Background(), CreateFacilityParams{
			Principal: memberPrincipal,
			Input:     FacilityInput{Name: "Court 1", MaxConcurrent: 1},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewFacilityService(nil, nil, nil, nil)

		_, err := svc.CreateFacility(context.Background(), CreateFacilityParams{
			Principal: adminPrincipal,
			Input:     FacilityInput{Name: "   ", MaxConcurrent: -2},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["name"]; !ok {
			t.Fatalf("expected name validation error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["maxConcurrent"]; !ok {
			t.Fatalf("expected maxConcurrent validation error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("defaults capacity and renders markdown", func(t *testing.T) {
		repo := newFacilityRepoStub()
		now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		svc := NewFacilityService(repo, nil, func() string { return "fac-1" }, func() time.Time { return now })

		facility, err := svc.CreateFacility(context.Background(), CreateFacilityParams{
			Principal: adminPrincipal,
			Input:     FacilityInput{Name: " Court 1 ", Description: "Floodlit **clay** court<script>"},
		})
		if err != nil {
			t.Fatalf("CreateFacility failed: %v", err)
		}
		if facility.ID != "fac-1" || facility.ClubID != "club-1" || facility.Name != "Court 1" {
			t.Fatalf("unexpected facility %+v", facility)
		}
		if facility.MaxConcurrent != 1 {
			t.Fatalf("expected default capacity 1, got %d", facility.MaxConcurrent)
		}
		if !strings.Contains(facility.DescriptionHTML, "<strong>clay</strong>") {
			t.Fatalf("expected rendered markdown, got %q", facility.DescriptionHTML)
		}
		if strings.Contains(facility.DescriptionHTML, "<script>") {
			t.Fatalf("expected raw html to be dropped, got %q", facility.DescriptionHTML)
		}
		if !repo.facilities["fac-1"].CreatedAt.Equal(now) {
			t.Fatalf("expected timestamps from clock")
		}
	})

	t.Run("maps duplicate names", func(t *testing.T) {
		repo := newFacilityRepoStub()
		repo.createErr = persistence.ErrDuplicate
		svc := NewFacilityService(repo, nil, func() string { return "fac-1" }, nil)

		_, err := svc.CreateFacility(context.Background(), CreateFacilityParams{
			Principal: adminPrincipal,
			Input:     FacilityInput{Name: "Court 1"},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestFacilityService_UpdateAndDelete(t *testing.T) {
	existing := Facility{ID: "fac-1", ClubID: "club-1", Name: "Court 1", MaxConcurrent: 1}
	foreign := Facility{ID: "fac-9", ClubID: "club-2", Name: "Elsewhere", MaxConcurrent: 1}

	t.Run("updates fields", func(t *testing.T) {
		repo := newFacilityRepoStub(existing)
		svc := NewFacilityService(repo, nil, nil, nil)

		updated, err := svc.UpdateFacility(context.Background(), UpdateFacilityParams{
			Principal:  adminPrincipal,
			FacilityID: "fac-1",
			Input:      FacilityInput{Name: "Centre Court", MaxConcurrent: 4},
		})
		if err != nil {
			t.Fatalf("UpdateFacility failed: %v", err)
		}
		if updated.Name != "Centre Court" || updated.MaxConcurrent != 4 {
			t.Fatalf("unexpected facility %+v", updated)
		}
	})

	t.Run("hides facilities of other clubs", func(t *testing.T) {
		repo := newFacilityRepoStub(existing, foreign)
		svc := NewFacilityService(repo, nil, nil, nil)

		if _, err := svc.GetFacility(context.Background(), memberPrincipal, "fac-9"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := svc.DeleteFacility(context.Background(), adminPrincipal, "fac-9"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if repo.deletedID != "" {
			t.Fatalf("expected no deletion")
		}
	})

	t.Run("members cannot delete", func(t *testing.T) {
		svc := NewFacilityService(newFacilityRepoStub(existing), nil, nil, nil)
		if err := svc.DeleteFacility(context.Background(), memberPrincipal, "fac-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("deletes", func(t *testing.T) {
		repo := newFacilityRepoStub(existing)
		svc := NewFacilityService(repo, nil, nil, nil)
		if err := svc.DeleteFacility(context.Background(), adminPrincipal, "fac-1"); err != nil {
			t.Fatalf("DeleteFacility failed: %v", err)
		}
		if repo.deletedID != "fac-1" {
			t.Fatalf("expected fac-1 to be deleted")
		}
	})
}

func TestFacilityService_ListFacilities(t *testing.T) {
	repo := newFacilityRepoStub(
		Facility{ID: "b", ClubID: "club-1", Name: "pitch"},
		Facility{ID: "a", ClubID: "club-1", Name: "Court"},
		Facility{ID: "c", ClubID: "club-2", Name: "Other"},
	)
	svc := NewFacilityService(repo, nil, nil, nil)

	got, err := svc.ListFacilities(context.Background(), memberPrincipal)
	if err != nil {
		t.Fatalf("ListFacilities failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected listing %+v", got)
	}
}

func TestFacilityService_SeedFacilities(t *testing.T) {
	t.Run("upserts club and facilities", func(t *testing.T) {
		repo := newFacilityRepoStub()
		clubs := &clubRepoStub{}
		svc := NewFacilityService(repo, clubs, nil, nil)

		err := svc.SeedFacilities(context.Background(), Club{ID: "club-1", Name: "Riverside", TimeZone: "Europe/London"}, []SeedFacility{
			{ID: "court-1", Input: FacilityInput{Name: "Court 1", MaxConcurrent: 2}},
			{ID: "pitch", Input: FacilityInput{Name: "Pitch"}},
		})
		if err != nil {
			t.Fatalf("SeedFacilities failed: %v", err)
		}
		if _, ok := clubs.clubs["club-1"]; !ok {
			t.Fatalf("expected club upsert")
		}
		if len(repo.upserted) != 2 || repo.upserted[1].MaxConcurrent != 1 || repo.upserted[0].ClubID != "club-1" {
			t.Fatalf("unexpected upserts %+v", repo.upserted)
		}
	})

	t.Run("rejects unknown time zones", func(t *testing.T) {
		svc := NewFacilityService(newFacilityRepoStub(), &clubRepoStub{}, nil, nil)
		err := svc.SeedFacilities(context.Background(), Club{ID: "club-1", TimeZone: "Mars/Olympus"}, nil)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rejects facilities without id", func(t *testing.T) {
		svc := NewFacilityService(newFacilityRepoStub(), &clubRepoStub{}, nil, nil)
		err := svc.SeedFacilities(context.Background(), Club{ID: "club-1"}, []SeedFacility{{Input: FacilityInput{Name: "Court"}}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["id"] == "" {
			t.Fatalf("expected id validation error, got %v", err)
		}
	})
}
