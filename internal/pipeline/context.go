package pipeline

import "context"

// Identifiers ride the context so log lines emitted deep in the HTTP layer
// can name the task and upload they belong to.

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	fileIDKey    contextKey = "file_id"
	requestIDKey contextKey = "request_id"
)

// WithTaskID stores the backend task identifier on the context. An empty id
// leaves the context untouched.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withString(ctx, taskIDKey, id)
}

// TaskIDFromContext reports the backend task identifier, if one was stored.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, taskIDKey)
}

// WithFileID stores the upload identifier on the context.
func WithFileID(ctx context.Context, id string) context.Context {
	return withString(ctx, fileIDKey, id)
}

// FileIDFromContext reports the upload identifier, if one was stored.
func FileIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, fileIDKey)
}

// WithRequestID stores a per-request correlation id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext reports the correlation id, if one was stored.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
