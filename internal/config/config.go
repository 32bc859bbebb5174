// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

// Package config loads and validates the Majel configuration from file,
// environment, and defaults.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Guffawaffle/majel/internal/provider"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// Config is the top-level Majel configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Model    ModelConfig    `mapstructure:"model"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// ProviderConfig holds the Gemini credentials.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ModelConfig selects the active model.
type ModelConfig struct {
	Default string `mapstructure:"default"`
}

// EngineConfig bounds one conversational turn.
type EngineConfig struct {
	MaxRounds           int           `mapstructure:"max_rounds"`
	MaxMutationsPerTurn int           `mapstructure:"max_mutations_per_turn"`
	TurnTimeout         time.Duration `mapstructure:"turn_timeout"`
}

// SessionsConfig controls the session registry and its eviction sweep.
type SessionsConfig struct {
	MaxTurns      int           `mapstructure:"max_turns"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	DisableSweep  bool          `mapstructure:"disable_sweep"`
}

// StorageConfig selects the fleet store backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MAJEL_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("model.default", provider.DefaultModel)
	v.SetDefault("engine.max_rounds", 5)
	v.SetDefault("engine.max_mutations_per_turn", 5)
	v.SetDefault("engine.turn_timeout", "2m")
	v.SetDefault("sessions.max_turns", 50)
	v.SetDefault("sessions.ttl", "30m")
	v.SetDefault("sessions.sweep_interval", "5m")
	v.SetDefault("sessions.disable_sweep", false)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "majel.db")

	// Environment
	v.SetEnvPrefix("MAJEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, majelerr.Errorf(majelerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns all
// validation errors found, collecting issues rather than stopping at the
// first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateModel()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateSessions()...)
	errs = append(errs, c.validateStorage()...)

	return errs
}

func (c *Config) validateModel() []error {
	var errs []error

	if err := provider.ValidateModel(c.Model.Default); err != nil {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: model.default: %w", err,
		))
	}

	return errs
}

func (c *Config) validateEngine() []error {
	var errs []error

	if c.Engine.MaxRounds < 1 {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: engine.max_rounds must be at least 1, got %d", c.Engine.MaxRounds))
	}
	if c.Engine.MaxMutationsPerTurn < 1 {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: engine.max_mutations_per_turn must be at least 1, got %d", c.Engine.MaxMutationsPerTurn))
	}
	if c.Engine.TurnTimeout <= 0 {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: engine.turn_timeout must be positive, got %s", c.Engine.TurnTimeout))
	}

	return errs
}

func (c *Config) validateSessions() []error {
	var errs []error

	if c.Sessions.MaxTurns < 1 {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: sessions.max_turns must be at least 1, got %d", c.Sessions.MaxTurns))
	}
	if c.Sessions.TTL <= 0 {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: sessions.ttl must be positive, got %s", c.Sessions.TTL))
	}
	if c.Sessions.SweepInterval <= 0 {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: sessions.sweep_interval must be positive, got %s", c.Sessions.SweepInterval))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue,
			"config: storage.path must not be empty when storage.backend is sqlite"))
	}

	return errs
}
