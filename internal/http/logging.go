package http

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/logging"
)

func handlerLogger(ctx context.Context, fallback zerolog.Logger, handlerName, operation string) zerolog.Logger {
	logger := fallback
	if fromCtx := logging.FromContext(ctx); fromCtx != nil && fromCtx.GetLevel() != zerolog.Disabled {
		logger = *fromCtx
	}

	builder := logger.With().Str("handler", handlerName)
	if operation != "" {
		builder = builder.Str("operation", operation)
	}
	return builder.Logger()
}
