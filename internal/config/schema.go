// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for the webhook.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Logging controls the root slog handler.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry configures OpenTelemetry trace export. Empty endpoint disables it.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// DataDir is the root directory for persistent module data.
	DataDir string `yaml:"data_dir"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "gateway.http").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig holds the OTLP/HTTP trace exporter settings.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}
