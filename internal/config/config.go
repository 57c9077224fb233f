// Package config loads the host's runtime configuration from the
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the environment-driven configuration of the mod host.
type Config struct {
	// ModsDir is scanned for mod descriptors.
	ModsDir string `env:"MODCORE_MODS_DIR" envDefault:"mods"`

	// SettingsDir holds the per-character settings documents.
	SettingsDir string `env:"MODCORE_SETTINGS_DIR" envDefault:"settings"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"MODCORE_LOG_LEVEL" envDefault:"info"`

	// DevMode switches to the human-oriented console encoder.
	DevMode bool `env:"MODCORE_DEV_MODE" envDefault:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// BuildLogger constructs the process logger per the configured level and
// mode.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", c.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	if c.DevMode {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
