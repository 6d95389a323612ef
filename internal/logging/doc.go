// Package logging assembles structured slog loggers used across capflow.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (component, run_id,
// session_id, stage, url, status, key_uri, reason) so that the correlation
// engine, the capture readers, and the ingest server emit records with the
// same shape. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
