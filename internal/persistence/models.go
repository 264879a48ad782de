package persistence

import "time"

// Club is a tenant. Every other record belongs to exactly one club.
type Club struct {
	ID        string
	Name      string
	TimeZone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member is a club member account.
type Member struct {
	ID           string
	ClubID       string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	BirthDate    *time.Time
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Facility is a bookable club resource such as a court or a pitch.
type Facility struct {
	ID            string
	ClubID        string
	Name          string
	Location      string
	Description   string
	MaxConcurrent int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Booking occupies a facility for [Start, End).
type Booking struct {
	ID         string
	ClubID     string
	FacilityID string
	MemberID   string
	SeriesID   *string
	Title      string
	Start      time.Time
	End        time.Time
	Status     string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CalendarEvent is a club-wide calendar entry.
type CalendarEvent struct {
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

// Session represents an authentication session persisted for a member.
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
