// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package store

import "time"

// --- Fleet catalog types ---

// Officer is one roster entry. The json form is what the fleet tools
// surface to the model.
type Officer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Rarity      string    `json:"rarity"`
	Level       int       `json:"level"`
	TargetLevel int       `json:"target_level"`
	ShipID      string    `json:"ship_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Ship is one hull in the fleet.
type Ship struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tier  int    `json:"tier"`
	Power int    `json:"power"`
}

// Dock is one drydock slot.
type Dock struct {
	ID     int    `json:"id"`
	ShipID string `json:"ship_id,omitempty"`
	Note   string `json:"note,omitempty"`
}

// --- Proposal types ---

// ProposalItem is one staged mutation inside a proposal batch.
type ProposalItem struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Preview string         `json:"preview"`
}

// Proposal is a batched, time-limited, human-approvable record of the
// mutations staged during one conversational turn.
type Proposal struct {
	ID        string
	UserID    string
	ArgsHash  string
	Items     []ProposalItem
	CreatedAt time.Time
	ExpiresAt time.Time
}

// --- Trust settings ---

// Trust levels for mutation-capable tools. Stored as plain strings so the
// settings store stays schema-stable; the engine owns the interpretation.
const (
	TrustAuto    = "auto"
	TrustApprove = "approve"
	TrustBlock   = "block"
)
