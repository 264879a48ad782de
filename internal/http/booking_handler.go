package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/clubflow/internal/application"
	"github.com/example/clubflow/internal/scheduler"
)

type bookingService interface {
	CheckAvailability(ctx context.Context, params application.CheckAvailabilityParams) (application.Availability, error)
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	CreateSeries(ctx context.Context, params application.CreateSeriesParams) (application.Series, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
}

// BookingHandler serves /bookings.
type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// CheckAvailability answers whether a proposed booking would be admitted.
func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	problems := fieldErrors{}
	start, err := parseTimestamp("startTime", req.StartTime)
	problems.check("startTime", err)
	end, err := parseTimestamp("endTime", req.EndTime)
	problems.check("endTime", err)
	if len(problems) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: problems})
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	availability, err := h.service.CheckAvailability(r.Context(), application.CheckAvailabilityParams{
		Principal:        principal,
		FacilityID:       req.FacilityID,
		Start:            start,
		End:              end,
		ExcludeBookingID: strings.TrimSpace(req.ExcludeBookingID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available:           availability.Available,
		MaxConcurrent:       availability.MaxConcurrent,
		CurrentBookings:     availability.CurrentBookings,
		ConflictingBookings: toBookingDTOs(availability.ConflictingBookings),
	})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.MemberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, vErr := req.toInput()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.MemberID, "facility_id", input.FacilityID)

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, vErr := req.bookingRequest.toInput()
	if vErr == nil {
		vErr = &application.ValidationError{}
	}
	problems := fieldErrors{}
	until, err := parseTimestamp("until", req.Until)
	problems.check("until", err)
	weekdays, err := parseWeekdays(req.Weekdays)
	problems.check("weekdays", err)
	for field, msg := range problems {
		if vErr.FieldErrors == nil {
			vErr.FieldErrors = make(map[string]string)
		}
		vErr.FieldErrors[field] = msg
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "CreateSeries", "principal_id", principal.MemberID, "facility_id", input.FacilityID)

	series, err := h.service.CreateSeries(r.Context(), application.CreateSeriesParams{
		Principal: principal,
		Input:     input,
		Frequency: strings.ToLower(strings.TrimSpace(req.Frequency)),
		Weekdays:  weekdays,
		Until:     until,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "series rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("series_id", series.ID, "occurrences", len(series.Bookings)).InfoContext(r.Context(), "series created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, seriesResponse{
		SeriesID: series.ID,
		Bookings: toBookingDTOs(series.Bookings),
	})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, vErr := req.toInput()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.MemberID, "booking_id", bookingID)

	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

// Delete cancels the booking and returns it.
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidResourceID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.CancelBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, _ := ResourceIDFromContext(r.Context())
	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, vErr := buildListBookingsParams(r.URL.Query(), principal)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func buildListBookingsParams(values url.Values, principal application.Principal) (application.ListBookingsParams, *application.ValidationError) {
	params := application.ListBookingsParams{
		Principal:  principal,
		FacilityID: strings.TrimSpace(values.Get("facilityId")),
		MemberID:   strings.TrimSpace(values.Get("memberId")),
	}
	if values.Get("memberId") == "me" {
		params.MemberID = principal.MemberID
	}

	problems := fieldErrors{}
	from, err := parseTimestamp("from", values.Get("from"))
	problems.check("from", err)
	to, err := parseTimestamp("to", values.Get("to"))
	problems.check("to", err)
	if raw := values.Get("includeCancelled"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			problems["includeCancelled"] = "includeCancelled must be true or false"
		}
		params.IncludeCancelled = include
	}
	if len(problems) > 0 {
		return params, &application.ValidationError{FieldErrors: problems}
	}

	if !from.IsZero() {
		params.From = &from
	}
	if !to.IsZero() {
		params.To = &to
	}
	return params, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekdays(values []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(values))
	for _, value := range values {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(value))]
		if !ok {
			return nil, errInvalidWeekday(value)
		}
		out = append(out, day)
	}
	return out, nil
}

type errInvalidWeekday string

func (e errInvalidWeekday) Error() string {
	return "unknown weekday " + strconv.Quote(string(e))
}

type bookingRequest struct {
	FacilityID string `json:"facilityId"`
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Status     string `json:"status"`
}

func (r bookingRequest) toInput() (application.BookingInput, *application.ValidationError) {
	problems := fieldErrors{}
	start, err := parseTimestamp("startTime", r.StartTime)
	problems.check("startTime", err)
	end, err := parseTimestamp("endTime", r.EndTime)
	problems.check("endTime", err)
	if len(problems) > 0 {
		return application.BookingInput{}, &application.ValidationError{FieldErrors: problems}
	}
	return application.BookingInput{
		FacilityID: strings.TrimSpace(r.FacilityID),
		Title:      r.Title,
		Notes:      r.Notes,
		Start:      start,
		End:        end,
		Status:     scheduler.ReservationStatus(r.Status),
	}, nil
}

type seriesRequest struct {
	bookingRequest
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays"`
	Until     string   `json:"until"`
}

type availabilityRequest struct {
	FacilityID       string `json:"facilityId"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	ExcludeBookingID string `json:"excludeBookingId"`
}

type availabilityResponse struct {
	Available           bool         `json:"available"`
	MaxConcurrent       int          `json:"maxConcurrent"`
	CurrentBookings     int          `json:"currentBookings"`
	ConflictingBookings []bookingDTO `json:"conflictingBookings"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type seriesResponse struct {
	SeriesID string       `json:"seriesId"`
	Bookings []bookingDTO `json:"bookings"`
}

type bookingDTO struct {
	ID         string  `json:"id"`
	FacilityID string  `json:"facilityId"`
	MemberID   string  `json:"memberId"`
	SeriesID   *string `json:"seriesId,omitempty"`
	Title      string  `json:"title,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	StartTime  string  `json:"startTime"`
	EndTime    string  `json:"endTime"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"createdAt,omitempty"`
	UpdatedAt  string  `json:"updatedAt,omitempty"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:         booking.ID,
		FacilityID: booking.FacilityID,
		MemberID:   booking.MemberID,
		SeriesID:   booking.SeriesID,
		Title:      booking.Title,
		Notes:      booking.Notes,
		StartTime:  formatTime(booking.Start),
		EndTime:    formatTime(booking.End),
		Status:     string(booking.Status),
		CreatedAt:  formatTime(booking.CreatedAt),
		UpdatedAt:  formatTime(booking.UpdatedAt),
	}
}

func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}
