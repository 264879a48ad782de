package persistence

import (
	"context"
	"time"
)

// ClubRepository stores tenants.
type ClubRepository interface {
	UpsertClub(ctx context.Context, club Club) error
	GetClub(ctx context.Context, id string) (Club, error)
}

// MemberRepository exposes CRUD operations for members.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) error
	UpdateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context, clubID string) ([]Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// FacilityRepository exposes CRUD operations for facilities.
type FacilityRepository interface {
	CreateFacility(ctx context.Context, facility Facility) error
	UpdateFacility(ctx context.Context, facility Facility) error
	UpsertFacility(ctx context.Context, facility Facility) error
	GetFacility(ctx context.Context, id string) (Facility, error)
	ListFacilities(ctx context.Context, clubID string) ([]Facility, error)
	DeleteFacility(ctx context.Context, id string) error
}

// BookingFilter narrows booking queries. Zero values do not filter.
type BookingFilter struct {
	ClubID           string
	FacilityID       string
	MemberID         string
	StartsBefore     *time.Time
	EndsAfter        *time.Time
	IncludeCancelled bool
}

// BookingWriter is the booking view available inside an admission
// transaction. Reads observe the transaction's snapshot.
type BookingWriter interface {
	ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]Booking, error)
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
}

// BookingRepository stores facility bookings.
type BookingRepository interface {
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) error
	// WithinWriteTx runs fn in a write transaction that holds the database
	// write lock from its first statement.
	WithinWriteTx(ctx context.Context, fn func(w BookingWriter) error) error
}

// EventFilter narrows calendar event queries.
type EventFilter struct {
	ClubID       string
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// EventRepository stores calendar events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event CalendarEvent) error
	UpdateEvent(ctx context.Context, event CalendarEvent) error
	GetEvent(ctx context.Context, id string) (CalendarEvent, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
