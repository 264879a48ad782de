package main

import (
	"context"
	"time"

	"github.com/example/clubflow/internal/application"
	"github.com/example/clubflow/internal/persistence"
	"github.com/example/clubflow/internal/scheduler"
)

type clubRepositoryAdapter struct {
	repo persistence.ClubRepository
	now  func() time.Time
}

func newClubRepositoryAdapter(repo persistence.ClubRepository, now func() time.Time) *clubRepositoryAdapter {
	return &clubRepositoryAdapter{repo: repo, now: now}
}

func (a *clubRepositoryAdapter) UpsertClub(ctx context.Context, club application.Club) error {
	now := a.now().UTC()
	return a.repo.UpsertClub(ctx, persistence.Club{
		ID:        club.ID,
		Name:      club.Name,
		TimeZone:  club.TimeZone,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (a *clubRepositoryAdapter) GetClub(ctx context.Context, id string) (application.Club, error) {
	stored, err := a.repo.GetClub(ctx, id)
	if err != nil {
		return application.Club{}, err
	}
	return application.Club{ID: stored.ID, Name: stored.Name, TimeZone: stored.TimeZone}, nil
}

// memberRepositoryAdapter serves both the member service and the auth
// credential lookups.
type memberRepositoryAdapter struct {
	repo persistence.MemberRepository
}

func newMemberRepositoryAdapter(repo persistence.MemberRepository) *memberRepositoryAdapter {
	return &memberRepositoryAdapter{repo: repo}
}

func (a *memberRepositoryAdapter) CreateMember(ctx context.Context, creds application.MemberCredentials) (application.Member, error) {
	if err := a.repo.CreateMember(ctx, toPersistenceMember(creds.Member, creds.PasswordHash)); err != nil {
		return application.Member{}, err
	}
	return a.GetMember(ctx, creds.Member.ID)
}

func (a *memberRepositoryAdapter) UpdateMember(ctx context.Context, creds application.MemberCredentials) (application.Member, error) {
	hash := creds.PasswordHash
	if hash == "" {
		current, err := a.repo.GetMember(ctx, creds.Member.ID)
		if err != nil {
			return application.Member{}, err
		}
		hash = current.PasswordHash
	}
	if err := a.repo.UpdateMember(ctx, toPersistenceMember(creds.Member, hash)); err != nil {
		return application.Member{}, err
	}
	return a.GetMember(ctx, creds.Member.ID)
}

func (a *memberRepositoryAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) DeleteMember(ctx context.Context, id string) error {
	return a.repo.DeleteMember(ctx, id)
}

func (a *memberRepositoryAdapter) ListMembers(ctx context.Context, clubID string) ([]application.Member, error) {
	models, err := a.repo.ListMembers(ctx, clubID)
	if err != nil {
		return nil, err
	}
	members := make([]application.Member, 0, len(models))
	for _, model := range models {
		members = append(members, toApplicationMember(model))
	}
	return members, nil
}

func (a *memberRepositoryAdapter) GetMemberCredentialsByEmail(ctx context.Context, email string) (application.MemberCredentials, error) {
	stored, err := a.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		return application.MemberCredentials{}, err
	}
	return application.MemberCredentials{
		Member:       toApplicationMember(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

type facilityRepositoryAdapter struct {
	repo persistence.FacilityRepository
}

func newFacilityRepositoryAdapter(repo persistence.FacilityRepository) *facilityRepositoryAdapter {
	return &facilityRepositoryAdapter{repo: repo}
}

func (a *facilityRepositoryAdapter) CreateFacility(ctx context.Context, facility application.Facility) (application.Facility, error) {
	if err := a.repo.CreateFacility(ctx, toPersistenceFacility(facility)); err != nil {
		return application.Facility{}, err
	}
	return a.GetFacility(ctx, facility.ID)
}

func (a *facilityRepositoryAdapter) UpdateFacility(ctx context.Context, facility application.Facility) (application.Facility, error) {
	if err := a.repo.UpdateFacility(ctx, toPersistenceFacility(facility)); err != nil {
		return application.Facility{}, err
	}
	return a.GetFacility(ctx, facility.ID)
}

func (a *facilityRepositoryAdapter) UpsertFacility(ctx context.Context, facility application.Facility) (application.Facility, error) {
	if err := a.repo.UpsertFacility(ctx, toPersistenceFacility(facility)); err != nil {
		return application.Facility{}, err
	}
	return a.GetFacility(ctx, facility.ID)
}

func (a *facilityRepositoryAdapter) GetFacility(ctx context.Context, id string) (application.Facility, error) {
	stored, err := a.repo.GetFacility(ctx, id)
	if err != nil {
		return application.Facility{}, err
	}
	return toApplicationFacility(stored), nil
}

func (a *facilityRepositoryAdapter) DeleteFacility(ctx context.Context, id string) error {
	return a.repo.DeleteFacility(ctx, id)
}

func (a *facilityRepositoryAdapter) ListFacilities(ctx context.Context, clubID string) ([]application.Facility, error) {
	models, err := a.repo.ListFacilities(ctx, clubID)
	if err != nil {
		return nil, err
	}
	facilities := make([]application.Facility, 0, len(models))
	for _, model := range models {
		facilities = append(facilities, toApplicationFacility(model))
	}
	return facilities, nil
}

type bookingRepositoryAdapter struct {
	repo persistence.BookingRepository
}

func newBookingRepositoryAdapter(repo persistence.BookingRepository) *bookingRepositoryAdapter {
	return &bookingRepositoryAdapter{repo: repo}
}

func (a *bookingRepositoryAdapter) GetBooking(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepositoryAdapter) ListBookings(ctx context.Context, filter application.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, persistence.BookingFilter{
		ClubID:           filter.ClubID,
		FacilityID:       filter.FacilityID,
		MemberID:         filter.MemberID,
		StartsBefore:     cloneTime(filter.StartsBefore),
		EndsAfter:        cloneTime(filter.EndsAfter),
		IncludeCancelled: filter.IncludeCancelled,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *bookingRepositoryAdapter) ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]application.Booking, error) {
	models, err := a.repo.ListActiveOverlapping(ctx, facilityID, start, end)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a *bookingRepositoryAdapter) UpdateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.GetBooking(ctx, booking.ID)
}

func (a *bookingRepositoryAdapter) WithinWriteTx(ctx context.Context, fn func(w application.BookingWriter) error) error {
	return a.repo.WithinWriteTx(ctx, func(w persistence.BookingWriter) error {
		return fn(bookingWriterAdapter{writer: w})
	})
}

// bookingWriterAdapter returns the written booking as given; reading it back
// inside the transaction would only repeat what was just stored.
type bookingWriterAdapter struct {
	writer persistence.BookingWriter
}

func (a bookingWriterAdapter) ListActiveOverlapping(ctx context.Context, facilityID string, start, end time.Time) ([]application.Booking, error) {
	models, err := a.writer.ListActiveOverlapping(ctx, facilityID, start, end)
	if err != nil {
		return nil, err
	}
	return toApplicationBookings(models), nil
}

func (a bookingWriterAdapter) CreateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.writer.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return booking, nil
}

func (a bookingWriterAdapter) UpdateBooking(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.writer.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return booking, nil
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.repo.DeleteEvent(ctx, id)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		ClubID:       filter.ClubID,
		StartsBefore: cloneTime(filter.StartsBefore),
		EndsAfter:    cloneTime(filter.EndsAfter),
	})
	if err != nil {
		return nil, err
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationMember(model persistence.Member) application.Member {
	return application.Member{
		ID:          model.ID,
		ClubID:      model.ClubID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.Role == application.RoleAdmin,
		BirthDate:   cloneTime(model.BirthDate),
		IsActive:    model.IsActive,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceMember(member application.Member, passwordHash string) persistence.Member {
	role := application.RoleMember
	if member.IsAdmin {
		role = application.RoleAdmin
	}
	return persistence.Member{
		ID:           member.ID,
		ClubID:       member.ClubID,
		Email:        member.Email,
		DisplayName:  member.DisplayName,
		Role:         role,
		PasswordHash: passwordHash,
		BirthDate:    cloneTime(member.BirthDate),
		IsActive:     member.IsActive,
		CreatedAt:    member.CreatedAt,
		UpdatedAt:    member.UpdatedAt,
	}
}

// toApplicationFacility leaves DescriptionHTML empty; FacilityService renders it.
func toApplicationFacility(model persistence.Facility) application.Facility {
	return application.Facility{
		ID:            model.ID,
		ClubID:        model.ClubID,
		Name:          model.Name,
		Location:      model.Location,
		Description:   model.Description,
		MaxConcurrent: model.MaxConcurrent,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceFacility(facility application.Facility) persistence.Facility {
	return persistence.Facility{
		ID:            facility.ID,
		ClubID:        facility.ClubID,
		Name:          facility.Name,
		Location:      facility.Location,
		Description:   facility.Description,
		MaxConcurrent: facility.MaxConcurrent,
		CreatedAt:     facility.CreatedAt,
		UpdatedAt:     facility.UpdatedAt,
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:         model.ID,
		ClubID:     model.ClubID,
		FacilityID: model.FacilityID,
		MemberID:   model.MemberID,
		SeriesID:   cloneString(model.SeriesID),
		Title:      model.Title,
		Notes:      model.Notes,
		Start:      model.Start,
		End:        model.End,
		Status:     scheduler.ReservationStatus(model.Status),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toApplicationBookings(models []persistence.Booking) []application.Booking {
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:         booking.ID,
		ClubID:     booking.ClubID,
		FacilityID: booking.FacilityID,
		MemberID:   booking.MemberID,
		SeriesID:   cloneString(booking.SeriesID),
		Title:      booking.Title,
		Notes:      booking.Notes,
		Start:      booking.Start,
		End:        booking.End,
		Status:     string(booking.Status),
		CreatedAt:  booking.CreatedAt,
		UpdatedAt:  booking.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.CalendarEvent) application.Event {
	return application.Event{
		ID:          model.ID,
		ClubID:      model.ClubID,
		Title:       model.Title,
		Description: model.Description,
		Start:       model.Start,
		End:         cloneTime(model.End),
		AllDay:      model.AllDay,
		FacilityID:  cloneString(model.FacilityID),
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.CalendarEvent {
	return persistence.CalendarEvent{
		ID:          event.ID,
		ClubID:      event.ClubID,
		Title:       event.Title,
		Description: event.Description,
		Start:       event.Start,
		End:         cloneTime(event.End),
		AllDay:      event.AllDay,
		FacilityID:  cloneString(event.FacilityID),
		CreatedBy:   event.CreatedBy,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		MemberID:    model.MemberID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		MemberID:    session.MemberID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
