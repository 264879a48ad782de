package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/clubflow/internal/application"
)

type facilityService interface {
	CreateFacility(ctx context.Context, params application.CreateFacilityParams) (application.Facility, error)
	UpdateFacility(ctx context.Context, params application.UpdateFacilityParams) (application.Facility, error)
	DeleteFacility(ctx context.Context, principal application.Principal, facilityID string) error
	GetFacility(ctx context.Context, principal application.Principal, facilityID string) (application.Facility, error)
	ListFacilities(ctx context.Context, principal application.Principal) ([]application.Facility, error)
}

// FacilityHandler serves /facilities.
type FacilityHandler struct {
	service   facilityService
	responder responder
	logger    *slog.Logger
}

// NewFacilityHandler constructs a FacilityHandler.
func NewFacilityHandler(service facilityService, logger *slog.Logger) *FacilityHandler {
	base := defaultLogger(logger)
	return &FacilityHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *FacilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "FacilityHandler", operation, attrs...)
}

func (h *FacilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req facilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode facility request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.MemberID)

	facility, err := h.service.CreateFacility(r.Context(), application.CreateFacilityParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "facility creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("facility_id", facility.ID).InfoContext(r.Context(), "facility created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, facilityResponse{Facility: toFacilityDTO(facility)})
}

func (h *FacilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facilityID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(facilityID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req facilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.MemberID, "facility_id", facilityID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode facility update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.MemberID, "facility_id", facilityID)

	facility, err := h.service.UpdateFacility(r.Context(), application.UpdateFacilityParams{
		Principal:  principal,
		FacilityID: facilityID,
		Input:      req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "facility update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "facility updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, facilityResponse{Facility: toFacilityDTO(facility)})
}

func (h *FacilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facilityID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(facilityID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.MemberID, "facility_id", facilityID)
	if err := h.service.DeleteFacility(r.Context(), principal, facilityID); err != nil {
		logger.ErrorContext(r.Context(), "facility delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "facility deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *FacilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	facilityID, _ := ResourceIDFromContext(r.Context())
	principal, _ := PrincipalFromContext(r.Context())
	facility, err := h.service.GetFacility(r.Context(), principal, facilityID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, facilityResponse{Facility: toFacilityDTO(facility)})
}

func (h *FacilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.MemberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}
	logger := h.log(r.Context(), "List", "principal_id", principal.MemberID)
	facilities, err := h.service.ListFacilities(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "facility list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(facilities)).DebugContext(r.Context(), "facilities listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listFacilitiesResponse{Facilities: toFacilityDTOs(facilities)})
}

type facilityRequest struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	MaxConcurrent int    `json:"maxConcurrent"`
}

func (r facilityRequest) toInput() application.FacilityInput {
	return application.FacilityInput{
		Name:          strings.TrimSpace(r.Name),
		Location:      strings.TrimSpace(r.Location),
		Description:   r.Description,
		MaxConcurrent: r.MaxConcurrent,
	}
}

type facilityResponse struct {
	Facility facilityDTO `json:"facility"`
}

type listFacilitiesResponse struct {
	Facilities []facilityDTO `json:"facilities"`
}

type facilityDTO struct {
	ID              string `json:"id"`
	ClubID          string `json:"clubId"`
	Name            string `json:"name"`
	Location        string `json:"location,omitempty"`
	Description     string `json:"description,omitempty"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
	MaxConcurrent   int    `json:"maxConcurrent"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

func toFacilityDTO(facility application.Facility) facilityDTO {
	return facilityDTO{
		ID:              facility.ID,
		ClubID:          facility.ClubID,
		Name:            facility.Name,
		Location:        facility.Location,
		Description:     facility.Description,
		DescriptionHTML: facility.DescriptionHTML,
		MaxConcurrent:   facility.MaxConcurrent,
		CreatedAt:       formatTime(facility.CreatedAt),
		UpdatedAt:       formatTime(facility.UpdatedAt),
	}
}

func toFacilityDTOs(facilities []application.Facility) []facilityDTO {
	out := make([]facilityDTO, 0, len(facilities))
	for _, facility := range facilities {
		out = append(out, toFacilityDTO(facility))
	}
	return out
}
