package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/clubflow/internal/application"
	"github.com/example/clubflow/internal/calendar"
)

type calendarService interface {
	Day(ctx context.Context, principal application.Principal, date time.Time, facilityID string) (calendar.Day, error)
}

// CalendarHandler serves the laid-out day view.
type CalendarHandler struct {
	service   calendarService
	responder responder
	now       func() time.Time
}

// NewCalendarHandler constructs a CalendarHandler. A missing date query
// parameter means today according to now.
func NewCalendarHandler(service calendarService, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{service: service, responder: newResponder(defaultLogger(logger)), now: now}
}

func (h *CalendarHandler) Day(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	date, err := parseDate("date", query.Get("date"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{"date": err.Error()}})
		return
	}
	if date == nil {
		y, m, d := h.now().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		date = &today
	}

	principal, _ := PrincipalFromContext(r.Context())
	day, err := h.service.Day(r.Context(), principal, *date, query.Get("facilityId"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDayDTO(day))
}

type dayDTO struct {
	Date        string     `json:"date"`
	WindowStart string     `json:"windowStart"`
	WindowEnd   string     `json:"windowEnd"`
	Blocks      []blockDTO `json:"blocks"`
}

type blockDTO struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Title        string  `json:"title"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
	Column       int     `json:"column"`
	TotalColumns int     `json:"totalColumns"`
	Width        float64 `json:"width"`
	Left         float64 `json:"left"`
	FacilityID   string  `json:"facilityId,omitempty"`
	MemberID     string  `json:"memberId,omitempty"`
	Status       string  `json:"status,omitempty"`
}

func toDayDTO(day calendar.Day) dayDTO {
	blocks := make([]blockDTO, 0, len(day.Blocks))
	for _, block := range day.Blocks {
		entry := block.Payload
		dto := blockDTO{
			ID:           entry.ID(),
			Kind:         string(entry.Kind),
			Title:        entry.Title(),
			StartTime:    formatTime(block.Interval.Start),
			EndTime:      formatTime(block.Interval.End),
			Top:          block.Top,
			Height:       block.Height,
			Column:       block.Column,
			TotalColumns: block.TotalColumns,
			Width:        block.Width,
			Left:         block.Left,
		}
		switch {
		case entry.Booking != nil:
			dto.FacilityID = entry.Booking.FacilityID
			dto.MemberID = entry.Booking.MemberID
			dto.Status = string(entry.Booking.Status)
		case entry.Event != nil:
			dto.FacilityID = entry.Event.FacilityID
		case entry.Birthday != nil:
			dto.MemberID = entry.Birthday.MemberID
		}
		blocks = append(blocks, dto)
	}
	return dayDTO{
		Date:        day.Date.Format(dateLayout),
		WindowStart: formatTime(day.Window.Start),
		WindowEnd:   formatTime(day.Window.End),
		Blocks:      blocks,
	}
}
