package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one replay or ingest run.
	FieldRunID = "run_id"
	// FieldSessionID is the correlation session a record concerns.
	FieldSessionID = "session_id"
	// FieldStage is the session stage name.
	FieldStage = "stage"
	// FieldURL is the request URL of the transaction being processed.
	FieldURL = "url"
	// FieldStatus is the HTTP response status of the transaction being processed.
	FieldStatus = "status"
	// FieldKeyURI identifies a decryption key.
	FieldKeyURI = "key_uri"
	// FieldReason explains why a transaction was skipped or a warning raised.
	FieldReason = "reason"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldError carries the error value.
	FieldError = "error"
)

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if id, ok := RunIDFromContext(ctx); ok {
		return []slog.Attr{slog.String(FieldRunID, id)}
	}
	return nil
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
