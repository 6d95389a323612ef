// Package catalog archives finished correlation runs in SQLite.
//
// Each run row summarizes a finalization report; its downloads are the
// deduplicated completed sessions and each download lists the keys it
// collected. The archive is an export target only. The schema is embedded and
// versioned: opening an archive created by another schema version fails with
// ErrSchemaMismatch rather than migrating in place.
package catalog
