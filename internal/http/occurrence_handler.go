package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/recurrence"
	"github.com/example/family-calendar/internal/timecodec"
)

type occurrenceService interface {
	Codec() *timecodec.Codec
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) (application.OccurrenceList, error)
}

// OccurrenceWindow is the range used when a request names neither bound.
type OccurrenceWindow struct {
	Past   time.Duration
	Future time.Duration
}

type OccurrenceHandler struct {
	service   occurrenceService
	window    OccurrenceWindow
	now       func() time.Time
	responder responder
	logger    zerolog.Logger
}

func NewOccurrenceHandler(service occurrenceService, window OccurrenceWindow, now func() time.Time, logger zerolog.Logger) *OccurrenceHandler {
	if now == nil {
		now = time.Now
	}
	return &OccurrenceHandler{
		service:   service,
		window:    window,
		now:       now,
		responder: newResponder(logger),
		logger:    logger,
	}
}

// List handles GET /api/occurrences?start=&end=&tz=&user_id=.
//
// Bounds with an offset are absolute; bounds without one are read in tz, or
// in the deployment timezone when tz is empty.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "OccurrenceHandler", "List")
	query := r.URL.Query()
	tz := strings.TrimSpace(query.Get("tz"))

	codec := h.service.Codec()
	if tz != "" {
		loaded, err := timecodec.Load(tz)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		codec = loaded
	}

	start, end, err := h.bounds(strings.TrimSpace(query.Get("start")), strings.TrimSpace(query.Get("end")), codec)
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", "invalid_window").Msg("rejected occurrence window")
		if errors.Is(err, calendar.ErrInvalidTimestamp) {
			h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{ErrorCode: "invalid_timestamp", Message: err.Error()})
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	list, err := h.service.ListOccurrences(r.Context(), application.ListOccurrencesParams{
		Start:    start,
		End:      end,
		Timezone: tz,
		OwnerIDs: ownerFilter(r),
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("occurrence listing failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toOccurrencesResponse(list))
}

func (h *OccurrenceHandler) bounds(rawStart, rawEnd string, codec *timecodec.Codec) (time.Time, time.Time, error) {
	switch {
	case rawStart == "" && rawEnd == "":
		now := h.now().UTC()
		return now.Add(-h.window.Past), now.Add(h.window.Future), nil
	case rawStart == "" || rawEnd == "":
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start and end must be given together", recurrence.ErrInvalidWindow)
	}

	start, err := calendar.ParseInstant(rawStart, codec)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := calendar.ParseInstant(rawEnd, codec)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

type occurrencesResponse struct {
	Window      windowDTO       `json:"window"`
	Timezone    string          `json:"timezone"`
	Occurrences []occurrenceDTO `json:"occurrences"`
	Faults      []faultDTO      `json:"faults,omitempty"`
}

type windowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type occurrenceDTO struct {
	InstanceID          string       `json:"instance_id"`
	EventID             string       `json:"event_id"`
	Index               int          `json:"index"`
	Title               string       `json:"title"`
	Description         string       `json:"description,omitempty"`
	UserID              string       `json:"user_id"`
	Start               string       `json:"start"`
	End                 string       `json:"end"`
	LocalStart          string       `json:"local_start"`
	LocalEnd            string       `json:"local_end"`
	AllDay              bool         `json:"all_day"`
	IsRecurringInstance bool         `json:"is_recurring_instance"`
	Reminder            *reminderDTO `json:"reminder,omitempty"`
}

type reminderDTO struct {
	Enabled bool `json:"enabled"`
	Minutes int  `json:"minutes"`
}

type faultDTO struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}

func toOccurrencesResponse(list application.OccurrenceList) occurrencesResponse {
	out := occurrencesResponse{
		Window: windowDTO{
			Start: list.Window.Start.UTC().Format(calendar.TimestampLayout),
			End:   list.Window.End.UTC().Format(calendar.TimestampLayout),
		},
		Timezone:    list.Timezone,
		Occurrences: make([]occurrenceDTO, 0, len(list.Occurrences)),
	}
	for _, view := range list.Occurrences {
		out.Occurrences = append(out.Occurrences, occurrenceDTO{
			InstanceID:          view.InstanceID,
			EventID:             view.EventID,
			Index:               view.Index,
			Title:               view.Title,
			Description:         view.Description,
			UserID:              view.OwnerID,
			Start:               view.Start.UTC().Format(calendar.TimestampLayout),
			End:                 view.End.UTC().Format(calendar.TimestampLayout),
			LocalStart:          view.LocalStart.String(),
			LocalEnd:            view.LocalEnd.String(),
			AllDay:              view.AllDay,
			IsRecurringInstance: view.IsRecurringInstance,
			Reminder:            toReminderDTO(view.Reminder),
		})
	}
	for _, fault := range list.Faults {
		out.Faults = append(out.Faults, faultDTO{EventID: fault.EventID, Kind: fault.Kind, Reason: fault.Reason})
	}
	return out
}

func toReminderDTO(r *calendar.Reminder) *reminderDTO {
	if r == nil {
		return nil
	}
	return &reminderDTO{Enabled: r.Enabled, Minutes: r.LeadMinutes}
}
