package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoints()
	c.normalizeCorrelation()
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	c.Paths.ManifestDir = strings.TrimSpace(c.Paths.ManifestDir)
	if c.Paths.ManifestDir != "" {
		if c.Paths.ManifestDir, err = expandPath(c.Paths.ManifestDir); err != nil {
			return fmt.Errorf("paths.manifest_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeEndpoints() {
	if value, ok := os.LookupEnv("CAPFLOW_DISPATCH_URL"); ok && strings.TrimSpace(value) != "" {
		c.Endpoints.DispatchURL = value
	}
	if value, ok := os.LookupEnv("CAPFLOW_KEY_URL"); ok && strings.TrimSpace(value) != "" {
		c.Endpoints.KeyURL = value
	}
	c.Endpoints.DispatchURL = strings.TrimSpace(c.Endpoints.DispatchURL)
	c.Endpoints.KeyURL = strings.TrimSpace(c.Endpoints.KeyURL)
}

func (c *Config) normalizeCorrelation() {
	c.Correlation.KeyPolicy = strings.ToLower(strings.TrimSpace(c.Correlation.KeyPolicy))
	if c.Correlation.KeyPolicy == "" {
		c.Correlation.KeyPolicy = defaultKeyPolicy
	}
	if c.Correlation.SuccessMin == 0 && c.Correlation.SuccessMax == 0 {
		c.Correlation.SuccessMin = defaultSuccessMin
		c.Correlation.SuccessMax = defaultSuccessMax
	}
}

func (c *Config) normalizeIngest() {
	if value, ok := os.LookupEnv("CAPFLOW_INGEST_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Ingest.Bind = value
	}
	c.Ingest.Bind = strings.TrimSpace(c.Ingest.Bind)
	if c.Ingest.Bind == "" {
		c.Ingest.Bind = defaultIngestBind
	}
	if value, ok := os.LookupEnv("CAPFLOW_INGEST_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Ingest.Token = value
	}
	c.Ingest.Token = strings.TrimSpace(c.Ingest.Token)
	if c.Ingest.MaxBodyBytes <= 0 {
		c.Ingest.MaxBodyBytes = defaultMaxBodyBytes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
