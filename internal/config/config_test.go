// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guffawaffle/majel/internal/config"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model.Default)
	assert.Equal(t, 5, cfg.Engine.MaxRounds)
	assert.Equal(t, 5, cfg.Engine.MaxMutationsPerTurn)
	assert.Equal(t, 2*time.Minute, cfg.Engine.TurnTimeout)
	assert.Equal(t, 50, cfg.Sessions.MaxTurns)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.SweepInterval)
	assert.False(t, cfg.Sessions.DisableSweep)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "majel.db", cfg.Storage.Path)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "majel.yaml")

	content := `
model:
  default: "gemini-2.5-pro"
sessions:
  ttl: "10m"
  disable_sweep: true
storage:
  backend: "memory"
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model.Default)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.TTL)
	assert.True(t, cfg.Sessions.DisableSweep)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MAJEL_MODEL_DEFAULT", "gemini-2.0-flash")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model.Default)
}

func TestLoad_ValidationCalledAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "majel.yaml")

	content := `
model:
  default: "hal-9000"
`
	err := os.WriteFile(cfgPath, []byte(content), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.default")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/majel.yaml")
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		Model:   config.ModelConfig{Default: "hal-9000"},
		Storage: config.StorageConfig{Backend: "postgres"},
	}

	errs := cfg.Validate()

	// Bad model, bad backend, plus the zero engine and session bounds.
	require.NotEmpty(t, errs)
	assert.GreaterOrEqual(t, len(errs), 2)
}

func TestValidate_SqliteNeedsPath(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Storage.Path = ""

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "storage.path")
}
