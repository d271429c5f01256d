package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
)

// IdempotencyKeyHeader lets a client retry POST /api/events safely.
const IdempotencyKeyHeader = "Idempotency-Key"

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.EventResult, error)
	ReplaceEvent(ctx context.Context, params application.ReplaceEventParams) (application.EventResult, error)
	DeleteEvent(ctx context.Context, id string) error
	GetEvent(ctx context.Context, id string) (calendar.BaseEvent, error)
	ListEvents(ctx context.Context, ownerIDs []string) ([]calendar.BaseEvent, error)
}

type EventHandler struct {
	service   eventService
	responder responder
	logger    zerolog.Logger
}

func NewEventHandler(service eventService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *EventHandler) log(ctx context.Context, operation string) zerolog.Logger {
	return handlerLogger(ctx, h.logger, "EventHandler", operation)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "Create")
	var req calendar.Record
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn().Err(err).Str("error_kind", "bad_request").Msg("failed to decode event request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Input:          req,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("event creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if result.Coalesced {
		status = http.StatusOK
	}
	logger.Info().Str("event_id", result.Event.ID).Bool("coalesced", result.Coalesced).Msg("event created")
	h.responder.writeJSON(r.Context(), w, status, toEventResponse(result))
}

func (h *EventHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	logger := h.log(r.Context(), "Replace")
	var req calendar.Record
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn().Err(err).Str("event_id", id).Str("error_kind", "bad_request").Msg("failed to decode event request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.ReplaceEvent(r.Context(), application.ReplaceEventParams{EventID: id, Input: req})
	if err != nil {
		logger.Warn().Err(err).Str("event_id", id).Str("error_kind", application.ErrorKind(err)).Msg("event replace failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("event_id", id).Msg("event replaced")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventResponse(result))
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	logger := h.log(r.Context(), "Delete")
	if err := h.service.DeleteEvent(r.Context(), id); err != nil {
		logger.Warn().Err(err).Str("event_id", id).Str("error_kind", application.ErrorKind(err)).Msg("event delete failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("event_id", id).Msg("event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: calendar.RecordOf(event)})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events, err := h.service.ListEvents(r.Context(), ownerFilter(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]calendar.Record, 0, len(events))
	for _, event := range events {
		out = append(out, calendar.RecordOf(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: out})
}

type eventResponse struct {
	Event     calendar.Record      `json:"event"`
	Warnings  []conflictWarningDTO `json:"warnings,omitempty"`
	Coalesced bool                 `json:"coalesced,omitempty"`
}

type listEventsResponse struct {
	Events []calendar.Record `json:"events"`
}

type conflictWarningDTO struct {
	EventID    string `json:"event_id"`
	InstanceID string `json:"instance_id"`
	Title      string `json:"title"`
	UserID     string `json:"user_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

func toEventResponse(result application.EventResult) eventResponse {
	return eventResponse{
		Event:     calendar.RecordOf(result.Event),
		Warnings:  toWarningDTOs(result.Warnings),
		Coalesced: result.Coalesced,
	}
}

func toWarningDTOs(warnings []application.ConflictWarning) []conflictWarningDTO {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]conflictWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, conflictWarningDTO{
			EventID:    warning.EventID,
			InstanceID: warning.InstanceID,
			Title:      warning.Title,
			UserID:     warning.OwnerID,
			Start:      warning.Start.UTC().Format(calendar.TimestampLayout),
			End:        warning.End.UTC().Format(calendar.TimestampLayout),
		})
	}
	return out
}

// ownerFilter reads user_id, either repeated or comma separated.
func ownerFilter(r *http.Request) []string {
	var ids []string
	for _, value := range r.URL.Query()["user_id"] {
		ids = append(ids, parseCSV(value)...)
	}
	return ids
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
