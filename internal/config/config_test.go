package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"capflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "capflow", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	wantCatalog := filepath.Join(tempHome, ".local", "share", "capflow", "catalog.db")
	if cfg.Paths.CatalogPath != wantCatalog {
		t.Fatalf("unexpected catalog path: got %q want %q", cfg.Paths.CatalogPath, wantCatalog)
	}
	if cfg.Paths.ManifestDir != "" {
		t.Fatalf("expected manifest dir unset by default, got %q", cfg.Paths.ManifestDir)
	}
	if cfg.Endpoints.DispatchURL != config.Default().Endpoints.DispatchURL {
		t.Fatalf("unexpected dispatch url: %q", cfg.Endpoints.DispatchURL)
	}
	if cfg.Correlation.KeyPolicy != config.KeyPolicyConsume {
		t.Fatalf("expected consume key policy by default, got %q", cfg.Correlation.KeyPolicy)
	}
	if cfg.Correlation.SuccessMin != 200 || cfg.Correlation.SuccessMax != 299 {
		t.Fatalf("unexpected success range: %d..%d", cfg.Correlation.SuccessMin, cfg.Correlation.SuccessMax)
	}
	if cfg.Ingest.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected ingest bind: %q", cfg.Ingest.Bind)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, filepath.Dir(cfg.Paths.CatalogPath)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "capflow.toml")

	type payload struct {
		Endpoints struct {
			DispatchURL string `toml:"dispatch_url"`
			KeyURL      string `toml:"key_url"`
		} `toml:"endpoints"`
		Correlation struct {
			KeyPolicy string `toml:"key_policy"`
		} `toml:"correlation"`
		Paths struct {
			ManifestDir string `toml:"manifest_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Endpoints.DispatchURL = "https://example.com/dispatch"
	custom.Endpoints.KeyURL = "https://example.com/keys"
	custom.Correlation.KeyPolicy = " Retain "
	custom.Paths.ManifestDir = filepath.Join(tempDir, "manifests")
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Endpoints.DispatchURL != "https://example.com/dispatch" {
		t.Fatalf("expected dispatch url from file, got %q", cfg.Endpoints.DispatchURL)
	}
	if cfg.Endpoints.KeyURL != "https://example.com/keys" {
		t.Fatalf("expected key url from file, got %q", cfg.Endpoints.KeyURL)
	}
	if cfg.Correlation.KeyPolicy != config.KeyPolicyRetain {
		t.Fatalf("expected normalized retain policy, got %q", cfg.Correlation.KeyPolicy)
	}
	if cfg.Paths.ManifestDir != filepath.Join(tempDir, "manifests") {
		t.Fatalf("unexpected manifest dir: %q", cfg.Paths.ManifestDir)
	}
}

func TestEnvVarOverridesEndpoints(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CAPFLOW_DISPATCH_URL", "http://127.0.0.1:9000/dispatch")
	t.Setenv("CAPFLOW_KEY_URL", "http://127.0.0.1:9000/fps")
	t.Setenv("CAPFLOW_INGEST_BIND", "0.0.0.0:9999")
	t.Setenv("CAPFLOW_INGEST_TOKEN", " secret ")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Endpoints.DispatchURL != "http://127.0.0.1:9000/dispatch" {
		t.Fatalf("expected env dispatch url, got %q", cfg.Endpoints.DispatchURL)
	}
	if cfg.Endpoints.KeyURL != "http://127.0.0.1:9000/fps" {
		t.Fatalf("expected env key url, got %q", cfg.Endpoints.KeyURL)
	}
	if cfg.Ingest.Token != "secret" {
		t.Fatalf("expected trimmed env token, got %q", cfg.Ingest.Token)
	}
	if cfg.Ingest.Bind != "0.0.0.0:9999" {
		t.Fatalf("expected env ingest bind, got %q", cfg.Ingest.Bind)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown key policy",
			mutate: func(c *config.Config) { c.Correlation.KeyPolicy = "hoard" },
			want:   "correlation.key_policy",
		},
		{
			name:   "relative dispatch url",
			mutate: func(c *config.Config) { c.Endpoints.DispatchURL = "/dispatch" },
			want:   "endpoints.dispatch_url",
		},
		{
			name:   "missing key url",
			mutate: func(c *config.Config) { c.Endpoints.KeyURL = "" },
			want:   "endpoints.key_url",
		},
		{
			name: "identical endpoints",
			mutate: func(c *config.Config) {
				c.Endpoints.KeyURL = c.Endpoints.DispatchURL
			},
			want: "must differ",
		},
		{
			name: "inverted status range",
			mutate: func(c *config.Config) {
				c.Correlation.SuccessMin = 300
				c.Correlation.SuccessMax = 200
			},
			want: "success_min",
		},
		{
			name:   "unknown log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Correlation.KeyPolicy != config.KeyPolicyConsume {
		t.Fatalf("unexpected sample key policy %q", cfg.Correlation.KeyPolicy)
	}
}
