package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/example/clubflow/internal/persistence"
)

// FacilityRepository captures the persistence operations needed by the service.
type FacilityRepository interface {
	CreateFacility(ctx context.Context, facility Facility) (Facility, error)
	GetFacility(ctx context.Context, id string) (Facility, error)
	UpdateFacility(ctx context.Context, facility Facility) (Facility, error)
	UpsertFacility(ctx context.Context, facility Facility) (Facility, error)
	DeleteFacility(ctx context.Context, id string) error
	ListFacilities(ctx context.Context, clubID string) ([]Facility, error)
}

// ClubRepository stores the clubs facilities are seeded into.
type ClubRepository interface {
	UpsertClub(ctx context.Context, club Club) error
	GetClub(ctx context.Context, id string) (Club, error)
}

// SeedFacility is a facility declared in the seed file.
type SeedFacility struct {
	ID    string
	Input FacilityInput
}

// markdown renders facility descriptions. Raw HTML in the source is escaped.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// FacilityService orchestrates validation, authorization, and persistence for facilities.
type FacilityService struct {
	facilities  FacilityRepository
	clubs       ClubRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewFacilityService constructs a facility service with the provided dependencies.
func NewFacilityService(facilities FacilityRepository, clubs ClubRepository, idGenerator func() string, now func() time.Time) *FacilityService {
	return NewFacilityServiceWithLogger(facilities, clubs, idGenerator, now, nil)
}

// NewFacilityServiceWithLogger constructs a facility service with a specified logger.
func NewFacilityServiceWithLogger(facilities FacilityRepository, clubs ClubRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *FacilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &FacilityService{facilities: facilities, clubs: clubs, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *FacilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "FacilityService", operation, attrs...)
}

// CreateFacility validates input and persists a new facility for administrators.
func (s *FacilityService) CreateFacility(ctx context.Context, params CreateFacilityParams) (facility Facility, err error) {
	if s == nil {
		err = fmt.Errorf("FacilityService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateFacility",
		"principal_id", params.Principal.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create facility", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("facility_id", facility.ID).InfoContext(ctx, "facility created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	input := normalizeFacilityInput(params.Input)
	if vErr := validateFacilityInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	facility = Facility{
		ID:            s.idGenerator(),
		ClubID:        params.Principal.ClubID,
		Name:          input.Name,
		Location:      input.Location,
		Description:   input.Description,
		MaxConcurrent: input.MaxConcurrent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if s.facilities != nil {
		facility, err = s.facilities.CreateFacility(ctx, facility)
		if err != nil {
			err = mapFacilityRepoError(err)
			return
		}
	}
	facility = withRenderedDescription(facility)
	return
}

// UpdateFacility validates input and updates an existing facility for administrators.
func (s *FacilityService) UpdateFacility(ctx context.Context, params UpdateFacilityParams) (facility Facility, err error) {
	if s == nil {
		err = fmt.Errorf("FacilityService is nil")
		return
	}
	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.facilities == nil {
		err = fmt.Errorf("facility repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateFacility",
		"principal_id", params.Principal.MemberID,
		"facility_id", params.FacilityID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update facility", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "facility updated")
	}()

	var existing Facility
	existing, err = s.loadFacility(ctx, params.Principal, params.FacilityID)
	if err != nil {
		return
	}

	input := normalizeFacilityInput(params.Input)
	if vErr := validateFacilityInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.Location = input.Location
	updated.Description = input.Description
	updated.MaxConcurrent = input.MaxConcurrent
	updated.UpdatedAt = s.now()

	facility, err = s.facilities.UpdateFacility(ctx, updated)
	if err != nil {
		err = mapFacilityRepoError(err)
		return
	}
	facility = withRenderedDescription(facility)
	return
}

// DeleteFacility removes a facility and its bookings when requested by an administrator.
func (s *FacilityService) DeleteFacility(ctx context.Context, principal Principal, facilityID string) error {
	if s == nil {
		return fmt.Errorf("FacilityService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.facilities == nil {
		return fmt.Errorf("facility repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteFacility",
		"principal_id", principal.MemberID,
		"facility_id", facilityID,
	)

	if _, err := s.loadFacility(ctx, principal, facilityID); err != nil {
		logger.ErrorContext(ctx, "failed to delete facility", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if err := s.facilities.DeleteFacility(ctx, facilityID); err != nil {
		err = mapFacilityRepoError(err)
		logger.ErrorContext(ctx, "failed to delete facility", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "facility deleted")
	return nil
}

// GetFacility returns a facility of the principal's club.
func (s *FacilityService) GetFacility(ctx context.Context, principal Principal, facilityID string) (Facility, error) {
	if s == nil {
		return Facility{}, fmt.Errorf("FacilityService is nil")
	}
	if s.facilities == nil {
		return Facility{}, fmt.Errorf("facility repository not configured")
	}
	facility, err := s.loadFacility(ctx, principal, facilityID)
	if err != nil {
		return Facility{}, err
	}
	return withRenderedDescription(facility), nil
}

// ListFacilities returns the facilities of the principal's club ordered by name.
func (s *FacilityService) ListFacilities(ctx context.Context, principal Principal) (facilities []Facility, err error) {
	if s == nil {
		err = fmt.Errorf("FacilityService is nil")
		return
	}
	if s.facilities == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListFacilities",
		"principal_id", principal.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list facilities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(facilities)).DebugContext(ctx, "facilities listed")
	}()

	var raw []Facility
	raw, err = s.facilities.ListFacilities(ctx, principal.ClubID)
	if err != nil {
		err = mapFacilityRepoError(err)
		return
	}

	facilities = make([]Facility, 0, len(raw))
	for _, facility := range raw {
		facilities = append(facilities, withRenderedDescription(facility))
	}
	sort.Slice(facilities, func(i, j int) bool {
		if strings.EqualFold(facilities[i].Name, facilities[j].Name) {
			return facilities[i].ID < facilities[j].ID
		}
		return strings.ToLower(facilities[i].Name) < strings.ToLower(facilities[j].Name)
	})
	return
}

// SeedFacilities upserts club and the declared facilities. It runs at startup
// without a principal.
func (s *FacilityService) SeedFacilities(ctx context.Context, club Club, seeds []SeedFacility) (err error) {
	if s == nil {
		return fmt.Errorf("FacilityService is nil")
	}
	if s.facilities == nil || s.clubs == nil {
		return fmt.Errorf("facility repository not configured")
	}

	logger := s.loggerWith(ctx, "SeedFacilities", "club_id", club.ID, "facility_count", len(seeds))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to seed facilities", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "facilities seeded")
	}()

	if strings.TrimSpace(club.ID) == "" {
		err = validationFailure("club.id", "club id is required")
		return
	}
	if _, tzErr := time.LoadLocation(club.TimeZone); tzErr != nil {
		err = validationFailure("club.timeZone", "unknown time zone")
		return
	}
	if err = s.clubs.UpsertClub(ctx, club); err != nil {
		err = mapFacilityRepoError(err)
		return
	}

	now := s.now()
	for i, seed := range seeds {
		input := normalizeFacilityInput(seed.Input)
		vErr := validateFacilityInput(input)
		if strings.TrimSpace(seed.ID) == "" {
			vErr.add("id", "id is required")
		}
		if vErr.HasErrors() {
			err = fmt.Errorf("facility %d: %w", i, vErr)
			return
		}
		facility := Facility{
			ID:            strings.TrimSpace(seed.ID),
			ClubID:        club.ID,
			Name:          input.Name,
			Location:      input.Location,
			Description:   input.Description,
			MaxConcurrent: input.MaxConcurrent,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err = s.facilities.UpsertFacility(ctx, facility); err != nil {
			err = fmt.Errorf("facility %s: %w", facility.ID, mapFacilityRepoError(err))
			return
		}
	}
	return nil
}

// loadFacility fetches a facility and hides facilities of other clubs.
func (s *FacilityService) loadFacility(ctx context.Context, principal Principal, facilityID string) (Facility, error) {
	if strings.TrimSpace(facilityID) == "" {
		return Facility{}, ErrNotFound
	}
	facility, err := s.facilities.GetFacility(ctx, facilityID)
	if err != nil {
		return Facility{}, mapFacilityRepoError(err)
	}
	if principal.ClubID != "" && facility.ClubID != principal.ClubID {
		return Facility{}, ErrNotFound
	}
	return facility, nil
}

func normalizeFacilityInput(input FacilityInput) FacilityInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Location = strings.TrimSpace(input.Location)
	input.Description = strings.TrimSpace(input.Description)
	if input.MaxConcurrent == 0 {
		input.MaxConcurrent = 1
	}
	return input
}

func validateFacilityInput(input FacilityInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if len(input.Name) > 100 {
		vErr.add("name", "name must be at most 100 characters")
	}
	if input.MaxConcurrent < 1 {
		vErr.add("maxConcurrent", "maxConcurrent must be at least 1")
	}

	return vErr
}

func withRenderedDescription(facility Facility) Facility {
	facility.DescriptionHTML = renderMarkdown(facility.Description)
	return facility
}

func renderMarkdown(source string) string {
	if source == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return html.EscapeString(source)
	}
	return buf.String()
}

func mapFacilityRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		return validationFailure("maxConcurrent", "maxConcurrent must be at least 1")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return validationFailure("clubId", "club does not exist")
	}
	return err
}
