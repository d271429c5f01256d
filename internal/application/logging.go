package application

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/logging"
	"github.com/example/family-calendar/internal/persistence"
	"github.com/example/family-calendar/internal/recurrence"
)

// serviceLogger prefers the request logger carried by ctx over the service's
// base logger and tags it with the service and operation names.
func serviceLogger(ctx context.Context, base zerolog.Logger, serviceName, operation string) zerolog.Logger {
	logger := base
	if fromCtx := logging.FromContext(ctx); fromCtx != nil && fromCtx.GetLevel() != zerolog.Disabled {
		logger = *fromCtx
	}
	builder := logger.With().Str("service", serviceName)
	if operation != "" {
		builder = builder.Str("operation", operation)
	}
	return builder.Logger()
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, recurrence.ErrInvalidRecurrence):
		return "invalid_recurrence"
	case errors.Is(err, recurrence.ErrCorruptRecurrence):
		return "corrupt_recurrence"
	case errors.Is(err, recurrence.ErrInvalidDuration):
		return "invalid_duration"
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, ErrUnknownTimezone):
		return "unknown_timezone"
	case errors.Is(err, persistence.ErrDuplicate):
		return "duplicate"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
