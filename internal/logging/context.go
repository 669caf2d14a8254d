package logging

import (
	"context"
	"log/slog"

	"deckcast/internal/pipeline"
)

// Attribute keys shared across the codebase so log lines stay greppable.
const (
	FieldComponent     = "component"
	FieldTaskID        = "task_id"
	FieldFileID        = "file_id"
	FieldStatus        = "status"
	FieldCorrelationID = "correlation_id"
)

// ContextFields collects the identifiers the pipeline package stashed on ctx
// as slog attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := pipeline.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskID, id))
	}
	if id, ok := pipeline.FileIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFileID, id))
	}
	if rid, ok := pipeline.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger with the context's task, file, and correlation
// identifiers attached, so call sites need not thread them by hand.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
