// Package config loads, normalizes, and validates capflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAPFLOW_DISPATCH_URL. The Config type centralizes the endpoints the
// correlation engine recognizes, the key policy it applies, and where logs and
// the catalog archive live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
