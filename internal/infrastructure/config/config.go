// Package config loads companion configuration from the environment, with
// optional overrides from a YAML file for settings that are awkward as env
// vars.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all companion configuration.
type Config struct {
	Desktop DesktopConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// DesktopConfig holds pairing and connection settings.
type DesktopConfig struct {
	Host            string `envconfig:"DESKTOP_HOST" yaml:"host"`
	DeviceName      string `envconfig:"DEVICE_NAME" yaml:"deviceName" default:"pocketdesk-cli"`
	CredentialsPath string `envconfig:"CREDENTIALS_PATH" yaml:"credentialsPath"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" default:"info"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" default:"false"`
}

// MetricsConfig holds the optional metrics listener configuration.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" yaml:"enabled" default:"false"`
	Addr    string `envconfig:"METRICS_ADDR" yaml:"addr" default:"127.0.0.1:9464"`
}

// Load reads configuration from POCKETDESK_* environment variables, then
// applies overrides from the file named by POCKETDESK_CONFIG when set.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pocketdesk", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if path := os.Getenv("POCKETDESK_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration or falls back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Desktop: DesktopConfig{DeviceName: "pocketdesk-cli"},
		Logging: LogConfig{Level: "info"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9464"},
	}
}

// fileConfig mirrors Config for YAML decoding; a missing section leaves the
// env-derived values in place.
type fileConfig struct {
	Desktop *DesktopConfig `yaml:"desktop"`
	Logging *LogConfig     `yaml:"logging"`
	Metrics *MetricsConfig `yaml:"metrics"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.Desktop != nil {
		cfg.Desktop = *fc.Desktop
	}
	if fc.Logging != nil {
		cfg.Logging = *fc.Logging
	}
	if fc.Metrics != nil {
		cfg.Metrics = *fc.Metrics
	}
	return nil
}
