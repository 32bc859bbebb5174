// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guffawaffle/majel/internal/store"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

type failingSettings struct {
	store.SettingsStore
}

func (failingSettings) TrustLevel(context.Context, string, string) (string, error) {
	return "", majelerr.New(majelerr.CodeStoreDatabaseFailure, "settings unavailable")
}

type staticSettings struct {
	store.SettingsStore
	level string
}

func (s staticSettings) TrustLevel(context.Context, string, string) (string, error) {
	return s.level, nil
}

func TestTrustGateDefaultsToApprove(t *testing.T) {
	gate := NewTrustGate(store.NewMemoryStore())

	assert.Equal(t, TrustApprove, gate.Classify(context.Background(), "assign_officer", "user-1"))
}

func TestTrustGateReadsConfiguredLevel(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.SetTrustLevel(ctx, "assign_officer", "user-1", store.TrustAuto))
	require.NoError(t, st.SetTrustLevel(ctx, "set_dock_ship", "user-1", store.TrustBlock))

	gate := NewTrustGate(st)

	assert.Equal(t, TrustAuto, gate.Classify(ctx, "assign_officer", "user-1"))
	assert.Equal(t, TrustBlock, gate.Classify(ctx, "set_dock_ship", "user-1"))
	// Another user's settings never leak across.
	assert.Equal(t, TrustApprove, gate.Classify(ctx, "assign_officer", "user-2"))
}

func TestTrustGateFailsClosedOnLookupError(t *testing.T) {
	gate := NewTrustGate(failingSettings{})

	assert.Equal(t, TrustBlock, gate.Classify(context.Background(), "assign_officer", "user-1"))
}

func TestTrustGateBlocksUnknownLevel(t *testing.T) {
	gate := NewTrustGate(staticSettings{level: "yolo"})

	assert.Equal(t, TrustBlock, gate.Classify(context.Background(), "assign_officer", "user-1"))
}

func TestTrustGateNoCaching(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	gate := NewTrustGate(st)

	assert.Equal(t, TrustApprove, gate.Classify(ctx, "assign_officer", "user-1"))

	// A mid-session policy change takes effect on the next classification.
	require.NoError(t, st.SetTrustLevel(ctx, "assign_officer", "user-1", store.TrustAuto))
	assert.Equal(t, TrustAuto, gate.Classify(ctx, "assign_officer", "user-1"))
}
