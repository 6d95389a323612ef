// Package ingest exposes a correlation engine over HTTP for live capture.
//
// An intercepting proxy (outside this module) posts each observed exchange to
// POST /v1/transactions using the same record shape as JSON Lines captures.
// Requests are serialized under one mutex so the engine still sees a single
// ordered stream. GET /v1/sessions reports progress and GET /v1/health is
// always unauthenticated. A file lock keeps a second server from starting
// against the same log directory.
package ingest
