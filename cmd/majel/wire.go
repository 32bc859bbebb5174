// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package main

import (
	"context"
	"os"

	"github.com/Guffawaffle/majel/internal/config"
	"github.com/Guffawaffle/majel/internal/engine"
	"github.com/Guffawaffle/majel/internal/provider/google"
	"github.com/Guffawaffle/majel/internal/store"
	"github.com/Guffawaffle/majel/internal/store/sqlite"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// buildStore opens the configured fleet store backend.
func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return sqlite.New(cfg.Storage.Path)
	default:
		return nil, majelerr.Errorf(majelerr.CodeConfigValidateInvalidValue, "unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildEngine wires the store, the Gemini client, and the engine from
// loaded configuration.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, store.Store, error) {
	apiKey := cfg.Provider.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	st, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := google.New(ctx, google.Config{APIKey: apiKey})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	eng, err := engine.New(ctx, client, st, nil, engine.Config{
		Model:               cfg.Model.Default,
		MaxRounds:           cfg.Engine.MaxRounds,
		MaxMutationsPerTurn: cfg.Engine.MaxMutationsPerTurn,
		MaxTurns:            cfg.Sessions.MaxTurns,
		TurnTimeout:         cfg.Engine.TurnTimeout,
		SessionTTL:          cfg.Sessions.TTL,
		SweepInterval:       cfg.Sessions.SweepInterval,
		DisableSweep:        cfg.Sessions.DisableSweep,
	})
	if err != nil {
		_ = client.Close()
		_ = st.Close()
		return nil, nil, err
	}

	return eng, st, nil
}
