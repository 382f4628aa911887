// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

// Package config loads and validates the Showlytics configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then an
// optional YAML config file, then environment variables (highest
// priority, prefix SHOWLYTICS_). Validation runs once at load time; an
// invalid experiment configuration (weight sums, traffic splits) is
// rejected here, at the settings boundary, and never reaches the
// scoring engine.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/showlytics/showlytics/internal/experiment"
	"github.com/showlytics/showlytics/internal/models"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/showlytics/config.yaml",
	"/etc/showlytics/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces all Showlytics environment variables.
const envPrefix = "SHOWLYTICS_"

// Config is the root configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Snapshot   SnapshotConfig   `koanf:"snapshot"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig configures the DuckDB event store.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for tests.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`
}

// WeightConfig is the per-variant scoring weight triple as configured.
type WeightConfig struct {
	Pop    float64 `koanf:"pop" validate:"gte=0"`
	Recent float64 `koanf:"recent" validate:"gte=0"`
	Pref   float64 `koanf:"pref" validate:"gte=0"`
}

// VariantSettings configures one experiment arm.
type VariantSettings struct {
	Weights WeightConfig `koanf:"weights"`
	Split   float64      `koanf:"split" validate:"gte=0"`
}

// ExperimentConfig configures the A/B experiment arms.
type ExperimentConfig struct {
	Variants map[string]VariantSettings `koanf:"variants" validate:"required,min=1"`
}

// SnapshotConfig configures the daily snapshot job.
type SnapshotConfig struct {
	// Schedule is a standard 5-field cron expression for daemon mode.
	Schedule string `koanf:"schedule"`
}

// defaultConfig returns the built-in defaults: a 50/50 two-arm
// experiment with the production weight triples.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/showlytics.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Experiment: ExperimentConfig{
			Variants: map[string]VariantSettings{
				"A": {
					Weights: WeightConfig{Pop: 0.6, Recent: 0.4, Pref: 0.0},
					Split:   50,
				},
				"B": {
					Weights: WeightConfig{Pop: 0.4, Recent: 0.4, Pref: 0.2},
					Split:   50,
				},
			},
		},
		Snapshot: SnapshotConfig{
			// Daily at 00:10, after the previous UTC day has closed.
			Schedule: "10 0 * * *",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// SHOWLYTICS_* environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SHOWLYTICS_DATABASE_MAX_MEMORY -> database.max_memory
	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps SHOWLYTICS_SECTION_SOME_KEY to section.some_key.
// Only the first underscore separates the section; the rest stay as
// snake_case key characters.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// findConfigFile returns the first existing config file path, honoring
// the CONFIG_PATH override. Empty string means defaults + env only.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks struct-level constraints and the experiment invariants
// (weight sums within tolerance, splits non-negative with positive
// total).
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// ExperimentSnapshot re-runs the weight and split invariants; this
	// is the single settings boundary for both checks.
	if _, err := c.ExperimentSnapshot(); err != nil {
		return err
	}
	return nil
}

// ExperimentSnapshot converts the configured variants into a validated,
// immutable experiment snapshot for injection into the engine.
func (c *Config) ExperimentSnapshot() (experiment.Snapshot, error) {
	variants := make(map[models.Variant]experiment.VariantConfig, len(c.Experiment.Variants))
	for name, vs := range c.Experiment.Variants {
		variants[models.Variant(name)] = experiment.VariantConfig{
			Weights: experiment.Weights{
				Pop:    vs.Weights.Pop,
				Recent: vs.Weights.Recent,
				Pref:   vs.Weights.Pref,
			},
			Split: vs.Split,
		}
	}

	snap, err := experiment.NewSnapshot(variants)
	if err != nil {
		return experiment.Snapshot{}, fmt.Errorf("invalid experiment configuration: %w", err)
	}
	return snap, nil
}
