package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/clubflow/internal/application"
	"github.com/example/clubflow/internal/lock"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// BookingServiceDeps captures dependencies for constructing a booking service.
// A nil Locker selects an in-process lock.
type BookingServiceDeps struct {
	Bookings    application.BookingRepository
	Facilities  application.FacilityCatalog
	Clubs       application.ClubRepository
	Locker      lock.Locker
	LockTimeout time.Duration
}

// NewBookingService builds a booking service on the factory clock and ids.
func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	return application.NewBookingServiceWithOptions(
		deps.Bookings,
		deps.Facilities,
		deps.Locker,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		application.BookingServiceOptions{
			LockTimeout: deps.LockTimeout,
			Clubs:       deps.Clubs,
			Logger:      f.Logger,
		},
	)
}

// NewMemberService builds a member service. A nil hash uses argon2id.
func (f *ServiceFactory) NewMemberService(members application.MemberRepository, hash application.PasswordHasher) *application.MemberService {
	return application.NewMemberServiceWithLogger(members, hash, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewFacilityService builds a facility service.
func (f *ServiceFactory) NewFacilityService(facilities application.FacilityRepository, clubs application.ClubRepository) *application.FacilityService {
	return application.NewFacilityServiceWithLogger(facilities, clubs, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewEventService builds an event service.
func (f *ServiceFactory) NewEventService(events application.EventRepository, facilities application.FacilityCatalog) *application.EventService {
	return application.NewEventServiceWithLogger(events, facilities, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	SessionTTL     time.Duration
}

// NewAuthService builds an auth service whose tokens come from the factory
// id generator.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.SessionTTL,
		f.Logger,
	)
}
