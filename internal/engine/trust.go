// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"log/slog"

	"github.com/Guffawaffle/majel/internal/store"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// TrustLevel classifies whether a mutation-capable tool call executes
// immediately, requires human approval, or is refused.
type TrustLevel string

const (
	TrustAuto    TrustLevel = store.TrustAuto
	TrustApprove TrustLevel = store.TrustApprove
	TrustBlock   TrustLevel = store.TrustBlock
)

// TrustGate classifies mutation-capable tool calls against the per-user
// policy source. It holds no cache: policy can change mid-session, so every
// classification is a fresh lookup.
type TrustGate struct {
	policy store.SettingsStore
}

// NewTrustGate returns a TrustGate over the given policy source.
func NewTrustGate(policy store.SettingsStore) *TrustGate {
	return &TrustGate{policy: policy}
}

// Classify resolves the trust tier for one (tool, user) pair. With no
// explicit setting the tier defaults to approve: unknown mutations are
// staged for review, not run and not refused. A failed policy lookup
// fails closed to block.
func (g *TrustGate) Classify(ctx context.Context, toolName, userID string) TrustLevel {
	level, err := g.policy.TrustLevel(ctx, toolName, userID)
	if err != nil {
		if majelerr.IsNotFound(err) {
			return TrustApprove
		}

		slog.Warn("trust policy lookup failed, blocking tool call",
			"tool", toolName,
			"user_id", userID,
			"error", err,
		)
		return TrustBlock
	}

	switch level {
	case store.TrustAuto:
		return TrustAuto
	case store.TrustApprove:
		return TrustApprove
	case store.TrustBlock:
		return TrustBlock
	default:
		slog.Warn("unknown trust level in settings, blocking tool call",
			"tool", toolName,
			"user_id", userID,
			"level", level,
		)
		return TrustBlock
	}
}
