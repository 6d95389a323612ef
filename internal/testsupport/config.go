package testsupport

import (
	"path/filepath"
	"testing"

	"capflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose paths live under a per-test temp
// directory. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog", "catalog.db")
	cfgVal.Ingest.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithKeyPolicy sets correlation.key_policy.
func WithKeyPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Correlation.KeyPolicy = policy
	}
}

// WithManifestDir points manifest output at a directory under the test root.
func WithManifestDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ManifestDir = filepath.Join(b.baseDir, "manifests")
	}
}

// WithMaxBodyBytes overrides the ingest body limit.
func WithMaxBodyBytes(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.MaxBodyBytes = limit
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
