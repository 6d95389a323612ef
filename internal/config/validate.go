package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateCorrelation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	if err := validateAbsoluteURL("endpoints.dispatch_url", c.Endpoints.DispatchURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("endpoints.key_url", c.Endpoints.KeyURL); err != nil {
		return err
	}
	if c.Endpoints.DispatchURL == c.Endpoints.KeyURL {
		return errors.New("endpoints.dispatch_url and endpoints.key_url must differ")
	}
	return nil
}

func validateAbsoluteURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, value)
	}
	return nil
}

func (c *Config) validateCorrelation() error {
	switch c.Correlation.KeyPolicy {
	case KeyPolicyConsume, KeyPolicyRetain:
	default:
		return fmt.Errorf("correlation.key_policy: unsupported value %q (use %q or %q)", c.Correlation.KeyPolicy, KeyPolicyConsume, KeyPolicyRetain)
	}
	if c.Correlation.SuccessMin < 100 || c.Correlation.SuccessMax > 599 {
		return errors.New("correlation.success_min and success_max must be valid HTTP status codes")
	}
	if c.Correlation.SuccessMin > c.Correlation.SuccessMax {
		return errors.New("correlation.success_min must not exceed correlation.success_max")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
