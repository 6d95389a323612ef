package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"capflow/internal/config"
	"capflow/internal/correlate"
	"capflow/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// engineOptions combines the configured correlation settings with an
// optional --key-policy override.
func engineOptions(cfg *config.Config, keyPolicy string) ([]correlate.Option, error) {
	opts, err := correlate.ConfigOptions(cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(keyPolicy) != "" {
		policy, err := correlate.ParseKeyPolicy(keyPolicy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, correlate.WithKeyPolicy(policy))
	}
	return opts, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
