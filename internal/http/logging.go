package http

import (
	"context"
	"log/slog"

	"github.com/example/clubflow/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger tags the request logger with the handler, the operation and
// the path identifier when the router resolved one.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	if id, ok := ResourceIDFromContext(ctx); ok && id != "" {
		attrs = append([]any{"resource_id", id}, attrs...)
	}
	return logging.Component(ctx, fallback, "handler", handlerName, operation, attrs...)
}
