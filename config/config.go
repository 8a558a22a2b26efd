// Package config loads wagectl settings from defaults, an optional YAML file
// and WAGEPROOF_* environment variables, in that order of precedence.
package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/trufnetwork/wageproof/attestation"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WAGEPROOF_"

const (
	BackendMemory = "memory"
	BackendBadger = "badger"

	FormatJSON    = "json"
	FormatConsole = "console"
)

type Config struct {
	LogLevel   string           `yaml:"logLevel"   env:"LOG_LEVEL"`
	LogFormat  string           `yaml:"logFormat"  env:"LOG_FORMAT"`
	Registry   RegistryConfig   `yaml:"registry"   envPrefix:"REGISTRY_"`
	Validation ValidationConfig `yaml:"validation" envPrefix:"VALIDATION_"`
	Metrics    MetricsConfig    `yaml:"metrics"    envPrefix:"METRICS_"`
}

type RegistryConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	// Path is the badger data directory.
	Path string `yaml:"path" env:"PATH"`
}

type ValidationConfig struct {
	MinHourlyRate int64 `yaml:"minHourlyRate" env:"MIN_HOURLY_RATE"`
	MaxHourlyRate int64 `yaml:"maxHourlyRate" env:"MAX_HOURLY_RATE"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: FormatConsole,
		Registry: RegistryConfig{
			Backend: BackendBadger,
			Path:    "wageproof-registry",
		},
		Validation: ValidationConfig{
			MinHourlyRate: attestation.DefaultMinHourlyRate,
			MaxHourlyRate: attestation.DefaultMaxHourlyRate,
		},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Registry.Path == "" {
			return errors.New("registry.path is required for the badger backend")
		}
	default:
		return errors.Errorf("unknown registry backend %q", c.Registry.Backend)
	}

	if c.Validation.MinHourlyRate <= 0 || c.Validation.MaxHourlyRate < c.Validation.MinHourlyRate {
		return errors.Errorf("invalid hourly rate bounds [%d, %d]", c.Validation.MinHourlyRate, c.Validation.MaxHourlyRate)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "logLevel")
	}
	switch c.LogFormat {
	case FormatJSON, FormatConsole:
	default:
		return errors.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// ValidatorOptions maps the validation section onto the engine options.
func (c *Config) ValidatorOptions() attestation.ValidatorOptions {
	return attestation.ValidatorOptions{
		MinHourlyRate: c.Validation.MinHourlyRate,
		MaxHourlyRate: c.Validation.MaxHourlyRate,
	}
}

// NewLogger builds a zap logger for the configured level and format.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "logLevel")
	}

	var zcfg zap.Config
	if c.LogFormat == FormatJSON {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// stdout carries command output
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
