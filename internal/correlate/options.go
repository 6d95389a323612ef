package correlate

import (
	"log/slog"

	"capflow/internal/capture"
	"capflow/internal/config"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithEndpoints overrides the dispatch and key-fetch URLs.
func WithEndpoints(endpoints Endpoints) Option {
	return func(e *Engine) {
		e.endpoints = endpoints
	}
}

// WithStatusRange overrides which response statuses count as success.
func WithStatusRange(statuses capture.StatusRange) Option {
	return func(e *Engine) {
		e.statuses = statuses
	}
}

// WithKeyPolicy selects the key pool policy.
func WithKeyPolicy(policy KeyPolicy) Option {
	return func(e *Engine) {
		e.pool = NewKeyPool(policy)
	}
}

// WithLogger sets the logger. The engine tags records with its component name.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.baseLogger = logger
	}
}

// WithRunID stamps the report and log records with a run identifier.
func WithRunID(runID string) Option {
	return func(e *Engine) {
		e.runID = runID
	}
}

// OnFinalize registers a hook that receives the final report. Hooks run once,
// in registration order.
func OnFinalize(hook func(Report)) Option {
	return func(e *Engine) {
		if hook != nil {
			e.finalizers = append(e.finalizers, hook)
		}
	}
}

// ConfigOptions translates the correlation-related configuration sections
// into engine options. The config is expected to have passed Validate.
func ConfigOptions(cfg *config.Config) ([]Option, error) {
	if cfg == nil {
		return nil, nil
	}
	policy, err := ParseKeyPolicy(cfg.Correlation.KeyPolicy)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithEndpoints(Endpoints{
			DispatchURL: cfg.Endpoints.DispatchURL,
			KeyURL:      cfg.Endpoints.KeyURL,
		}),
		WithStatusRange(capture.StatusRange{
			Min: cfg.Correlation.SuccessMin,
			Max: cfg.Correlation.SuccessMax,
		}),
		WithKeyPolicy(policy),
	}, nil
}
