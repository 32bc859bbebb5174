// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package store

import "context"

// FleetStore is the catalog the fleet tools read and mutate.
type FleetStore interface {
	GetOfficer(ctx context.Context, id string) (*Officer, error)
	SearchOfficers(ctx context.Context, query string) ([]*Officer, error)
	ListOfficers(ctx context.Context) ([]*Officer, error)
	AssignOfficer(ctx context.Context, officerID, shipID string) error
	SetOfficerTarget(ctx context.Context, officerID string, targetLevel int) error

	GetShip(ctx context.Context, id string) (*Ship, error)
	ListShips(ctx context.Context) ([]*Ship, error)

	GetDock(ctx context.Context, id int) (*Dock, error)
	ListDocks(ctx context.Context) ([]*Dock, error)
	SetDockShip(ctx context.Context, dockID int, shipID string) error
}

// ProposalStore persists approval batches, scoped per user.
type ProposalStore interface {
	CreateProposal(ctx context.Context, p *Proposal) (*Proposal, error)
}

// SettingsStore is the per-user trust policy source. TrustLevel returns a
// not-found error when no explicit level has been configured for the pair.
type SettingsStore interface {
	TrustLevel(ctx context.Context, toolName, userID string) (string, error)
	SetTrustLevel(ctx context.Context, toolName, userID, level string) error
}

// Store bundles the collaborator stores the engine and tools consume.
type Store interface {
	FleetStore
	ProposalStore
	SettingsStore
	Close() error
}
