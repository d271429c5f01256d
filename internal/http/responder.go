package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/logging"
	"github.com/example/family-calendar/internal/recurrence"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errInvalidEventID = errors.New("event id is required")
	errInvalidUserID  = errors.New("user id is required")
)

type responder struct {
	logger zerolog.Logger
}

func newResponder(logger zerolog.Logger) responder {
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := r.loggerFor(ctx)
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		logger := r.loggerFor(ctx)
		logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps service errors onto status codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: application.ErrorKind(err),
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, recurrence.ErrInvalidRecurrence):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{ErrorCode: "invalid_recurrence", Message: err.Error()})
	case errors.Is(err, application.ErrInvalidWindow), errors.Is(err, application.ErrUnknownTimezone):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{ErrorCode: application.ErrorKind(err), Message: err.Error()})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "not_found", Message: "the requested resource was not found"})
	case errors.Is(err, application.ErrIdempotencyConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "idempotency_conflict",
			Message:   "the idempotency key was already used for a different request",
		})
	default:
		logger := r.loggerFor(ctx)
		logger.Error().Err(err).Msg("unexpected service error")
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: "unexpected", Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *zerolog.Logger {
	if logger := logging.FromContext(ctx); logger != nil && logger.GetLevel() != zerolog.Disabled {
		return logger
	}
	return &r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
