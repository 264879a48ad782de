package application

import (
	"time"

	"github.com/example/clubflow/internal/scheduler"
)

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Principal represents the authenticated member invoking a service method.
type Principal struct {
	MemberID string
	ClubID   string
	IsAdmin  bool
}

// Club is the tenant every record belongs to.
type Club struct {
	ID       string
	Name     string
	TimeZone string
}

// Location returns the club's time zone, falling back to UTC.
func (c Club) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MemberInput captures caller provided member attributes.
type MemberInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
	BirthDate   *time.Time
	IsActive    *bool
}

// Member represents a club member account.
type Member struct {
	ID          string
	ClubID      string
	Email       string
	DisplayName string
	IsAdmin     bool
	BirthDate   *time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateMemberParams wraps the data required to create a member.
type CreateMemberParams struct {
	Principal Principal
	Input     MemberInput
}

// UpdateMemberParams wraps the data required to update a member.
type UpdateMemberParams struct {
	Principal Principal
	MemberID  string
	Input     MemberInput
}

// MemberCredentials pairs a member with the stored password hash.
type MemberCredentials struct {
	Member       Member
	PasswordHash string
}

// FacilityInput captures caller provided facility fields. Description is
// markdown.
type FacilityInput struct {
	Name          string
	Location      string
	Description   string
	MaxConcurrent int
}

// Facility is a bookable club resource.
type Facility struct {
	ID              string
	ClubID          string
	Name            string
	Location        string
	Description     string
	DescriptionHTML string
	MaxConcurrent   int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateFacilityParams wraps the data required to create a facility.
type CreateFacilityParams struct {
	Principal Principal
	Input     FacilityInput
}

// UpdateFacilityParams wraps the data required to update a facility.
type UpdateFacilityParams struct {
	Principal  Principal
	FacilityID string
	Input      FacilityInput
}

// BookingInput captures caller provided booking fields.
type BookingInput struct {
	FacilityID string
	Title      string
	Notes      string
	Start      time.Time
	End        time.Time
	// Status is pending or confirmed; empty means confirmed.
	Status scheduler.ReservationStatus
}

// Booking occupies a facility for [Start, End).
type Booking struct {
	ID         string
	ClubID     string
	FacilityID string
	MemberID   string
	SeriesID   *string
	Title      string
	Notes      string
	Start      time.Time
	End        time.Time
	Status     scheduler.ReservationStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Interval returns the booked interval.
func (b Booking) Interval() scheduler.Interval {
	return scheduler.NewInterval(b.Start, b.End)
}

// Reservation converts the booking for the admission engine.
func (b Booking) Reservation() scheduler.Reservation {
	return scheduler.Reservation{
		ID:         b.ID,
		ResourceID: b.FacilityID,
		Interval:   b.Interval(),
		Status:     b.Status,
	}
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to move or edit a booking.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Input     BookingInput
}

// CheckAvailabilityParams describes a proposed booking to test.
type CheckAvailabilityParams struct {
	Principal        Principal
	FacilityID       string
	Start            time.Time
	End              time.Time
	ExcludeBookingID string
}

// Availability is the outcome of CheckAvailability.
//
// CurrentBookings counts every active booking overlapping the proposal,
// including the excluded one. ConflictingBookings only lists the bookings
// that counted against the decision.
type Availability struct {
	Available           bool
	MaxConcurrent       int
	CurrentBookings     int
	ConflictingBookings []Booking
}

// CreateSeriesParams describes a recurring booking. Input.Start and Input.End
// define the first occurrence.
type CreateSeriesParams struct {
	Principal Principal
	Input     BookingInput
	Frequency string
	Weekdays  []time.Weekday
	Until     time.Time
}

// Series is a set of bookings created together.
type Series struct {
	ID       string
	Bookings []Booking
}

// ListBookingsParams narrows a booking listing.
type ListBookingsParams struct {
	Principal        Principal
	FacilityID       string
	MemberID         string
	From             *time.Time
	To               *time.Time
	IncludeCancelled bool
}

// BookingFilter narrows queries issued to the booking repository.
type BookingFilter struct {
	ClubID           string
	FacilityID       string
	MemberID         string
	StartsBefore     *time.Time
	EndsAfter        *time.Time
	IncludeCancelled bool
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	FacilityID  *string
}

// Event is a club calendar event.
type Event struct {
	ID          string
	ClubID      string
	Title       string
	Description string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	FacilityID  *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ListEventsParams narrows an event listing.
type ListEventsParams struct {
	Principal Principal
	From      *time.Time
	To        *time.Time
}

// EventFilter narrows queries issued to the event repository.
type EventFilter struct {
	ClubID       string
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// Session represents an authenticated session issued to a member.
type Session struct {
	ID          string
	MemberID    string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a member.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	Member  Member
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}
