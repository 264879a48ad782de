package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/clubflow/internal/application"
	"github.com/example/clubflow/internal/persistence"
	"github.com/example/clubflow/internal/scheduler"
)

var (
	memberCounter   uint64
	facilityCounter uint64
	bookingCounter  uint64
)

// DefaultClubID is the club every fixture belongs to unless overridden.
const DefaultClubID = "club-001"

var referenceTime = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ClubFixture returns the default club in persistence form.
func ClubFixture() persistence.Club {
	return persistence.Club{
		ID:        DefaultClubID,
		Name:      "Riverside Tennis",
		TimeZone:  "UTC",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// ----------------------------- Member fixtures ---------------------------

// MemberFixture is a deterministic member record.
type MemberFixture struct {
	ID           string
	ClubID       string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	BirthDate    *time.Time
	CreatedAt    time.Time
}

// MemberOption configures the generated member fixture.
type MemberOption func(*MemberFixture)

// NewMemberFixture returns a member fixture with optional overrides.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	id := fmt.Sprintf("member-%03d", idx)
	fixture := MemberFixture{
		ID:           id,
		ClubID:       DefaultClubID,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("Member %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMemberID overrides the generated member ID.
func WithMemberID(id string) MemberOption {
	return func(f *MemberFixture) { f.ID = id }
}

// WithMemberAdmin marks the member as an administrator.
func WithMemberAdmin() MemberOption {
	return func(f *MemberFixture) { f.IsAdmin = true }
}

// WithMemberBirthDate sets the birth date.
func WithMemberBirthDate(year int, month time.Month, day int) MemberOption {
	return func(f *MemberFixture) {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		f.BirthDate = &d
	}
}

// Principal returns the principal acting as this member.
func (f MemberFixture) Principal() application.Principal {
	return application.Principal{MemberID: f.ID, ClubID: f.ClubID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.Member value.
func (f MemberFixture) Persistence() persistence.Member {
	role := application.RoleMember
	if f.IsAdmin {
		role = application.RoleAdmin
	}
	return persistence.Member{
		ID:           f.ID,
		ClubID:       f.ClubID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         role,
		PasswordHash: f.PasswordHash,
		BirthDate:    copyTimePtr(f.BirthDate),
		IsActive:     true,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// Credentials returns the fixture as application.MemberCredentials.
func (f MemberFixture) Credentials() application.MemberCredentials {
	return application.MemberCredentials{
		Member: application.Member{
			ID:          f.ID,
			ClubID:      f.ClubID,
			Email:       f.Email,
			DisplayName: f.DisplayName,
			IsAdmin:     f.IsAdmin,
			BirthDate:   copyTimePtr(f.BirthDate),
			IsActive:    true,
			CreatedAt:   f.CreatedAt,
			UpdatedAt:   f.CreatedAt,
		},
		PasswordHash: f.PasswordHash,
	}
}

// ---------------------------- Facility fixtures --------------------------

// FacilityFixture is a deterministic bookable facility.
type FacilityFixture struct {
	ID            string
	ClubID        string
	Name          string
	MaxConcurrent int
}

// NewFacilityFixture returns a facility with the given capacity.
func NewFacilityFixture(maxConcurrent int) FacilityFixture {
	idx := atomic.AddUint64(&facilityCounter, 1)
	return FacilityFixture{
		ID:            fmt.Sprintf("court-%03d", idx),
		ClubID:        DefaultClubID,
		Name:          fmt.Sprintf("Court %d", idx),
		MaxConcurrent: maxConcurrent,
	}
}

// Persistence returns the fixture as a persistence.Facility value.
func (f FacilityFixture) Persistence() persistence.Facility {
	return persistence.Facility{
		ID:            f.ID,
		ClubID:        f.ClubID,
		Name:          f.Name,
		MaxConcurrent: f.MaxConcurrent,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
}

// Application returns the fixture as an application.Facility value.
func (f FacilityFixture) Application() application.Facility {
	return application.Facility{
		ID:            f.ID,
		ClubID:        f.ClubID,
		Name:          f.Name,
		MaxConcurrent: f.MaxConcurrent,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
}

// ---------------------------- Booking fixtures ---------------------------

// BookingFixture is a deterministic booking on ReferenceTime's date.
type BookingFixture struct {
	ID         string
	ClubID     string
	FacilityID string
	MemberID   string
	Start      time.Time
	End        time.Time
	Status     scheduler.ReservationStatus
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture books facility for member from startHour to endHour on
// the reference date.
func NewBookingFixture(facility FacilityFixture, member MemberFixture, startHour, endHour float64, opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	day := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), 0, 0, 0, 0, time.UTC)
	fixture := BookingFixture{
		ID:         fmt.Sprintf("booking-%03d", idx),
		ClubID:     facility.ClubID,
		FacilityID: facility.ID,
		MemberID:   member.ID,
		Start:      day.Add(time.Duration(startHour * float64(time.Hour))),
		End:        day.Add(time.Duration(endHour * float64(time.Hour))),
		Status:     scheduler.StatusConfirmed,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingStatus overrides the booking status.
func WithBookingStatus(status scheduler.ReservationStatus) BookingOption {
	return func(f *BookingFixture) { f.Status = status }
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:         f.ID,
		ClubID:     f.ClubID,
		FacilityID: f.FacilityID,
		MemberID:   f.MemberID,
		Start:      f.Start,
		End:        f.End,
		Status:     string(f.Status),
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:         f.ID,
		ClubID:     f.ClubID,
		FacilityID: f.FacilityID,
		MemberID:   f.MemberID,
		Start:      f.Start,
		End:        f.End,
		Status:     f.Status,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// Reservation returns the fixture as the admission engine sees it.
func (f BookingFixture) Reservation() scheduler.Reservation {
	return scheduler.Reservation{
		ID:         f.ID,
		ResourceID: f.FacilityID,
		Interval:   scheduler.Interval{Start: f.Start, End: f.End},
		Status:     f.Status,
	}
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	clone := *src
	return &clone
}
