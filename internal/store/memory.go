// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and by the CLI when no
// database path is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	officers  map[string]*Officer
	ships     map[string]*Ship
	docks     map[int]*Dock
	proposals map[string]*Proposal
	trust     map[string]string // toolName + "\x00" + userID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		officers:  make(map[string]*Officer),
		ships:     make(map[string]*Ship),
		docks:     make(map[int]*Dock),
		proposals: make(map[string]*Proposal),
		trust:     make(map[string]string),
	}
}

func (s *MemoryStore) Close() error { return nil }

// PutOfficer inserts or replaces a roster entry.
func (s *MemoryStore) PutOfficer(o *Officer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.officers[o.ID] = &cp
}

// PutShip inserts or replaces a ship.
func (s *MemoryStore) PutShip(ship *Ship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ship
	s.ships[ship.ID] = &cp
}

// PutDock inserts or replaces a dock slot.
func (s *MemoryStore) PutDock(d *Dock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.docks[d.ID] = &cp
}

func (s *MemoryStore) GetOfficer(_ context.Context, id string) (*Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.officers[id]
	if !ok {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "officer not found", majelerr.Field("officer_id", id))
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) SearchOfficers(_ context.Context, query string) ([]*Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*Officer
	for _, o := range s.officers {
		if strings.Contains(strings.ToLower(o.Name), q) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListOfficers(_ context.Context) ([]*Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Officer, 0, len(s.officers))
	for _, o := range s.officers {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) AssignOfficer(_ context.Context, officerID, shipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.officers[officerID]
	if !ok {
		return majelerr.New(majelerr.CodeStoreNotFound, "officer not found", majelerr.Field("officer_id", officerID))
	}
	if _, ok := s.ships[shipID]; !ok {
		return majelerr.New(majelerr.CodeStoreNotFound, "ship not found", majelerr.Field("ship_id", shipID))
	}

	o.ShipID = shipID
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetOfficerTarget(_ context.Context, officerID string, targetLevel int) error {
	if targetLevel <= 0 {
		return majelerr.New(majelerr.CodeStoreInvalidInput, "target level must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.officers[officerID]
	if !ok {
		return majelerr.New(majelerr.CodeStoreNotFound, "officer not found", majelerr.Field("officer_id", officerID))
	}

	o.TargetLevel = targetLevel
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetShip(_ context.Context, id string) (*Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ship, ok := s.ships[id]
	if !ok {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "ship not found", majelerr.Field("ship_id", id))
	}
	cp := *ship
	return &cp, nil
}

func (s *MemoryStore) ListShips(_ context.Context) ([]*Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Ship, 0, len(s.ships))
	for _, ship := range s.ships {
		cp := *ship
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetDock(_ context.Context, id int) (*Dock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docks[id]
	if !ok {
		return nil, majelerr.New(majelerr.CodeStoreNotFound, "dock not found", majelerr.Field("dock_id", id))
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) ListDocks(_ context.Context) ([]*Dock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Dock, 0, len(s.docks))
	for _, d := range s.docks {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetDockShip(_ context.Context, dockID int, shipID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docks[dockID]
	if !ok {
		return majelerr.New(majelerr.CodeStoreNotFound, "dock not found", majelerr.Field("dock_id", dockID))
	}
	if _, ok := s.ships[shipID]; !ok {
		return majelerr.New(majelerr.CodeStoreNotFound, "ship not found", majelerr.Field("ship_id", shipID))
	}

	d.ShipID = shipID
	return nil
}

func (s *MemoryStore) CreateProposal(_ context.Context, p *Proposal) (*Proposal, error) {
	if p.ID == "" || p.UserID == "" {
		return nil, majelerr.New(majelerr.CodeStoreInvalidInput, "proposal id and user id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; ok {
		return nil, majelerr.New(majelerr.CodeStoreConflict, "proposal already exists", majelerr.Field("proposal_id", p.ID))
	}

	cp := *p
	cp.Items = append([]ProposalItem(nil), p.Items...)
	s.proposals[p.ID] = &cp

	out := cp
	return &out, nil
}

// GetProposal is a test and CLI convenience, not part of the Store contract.
func (s *MemoryStore) GetProposal(id string) (*Proposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *MemoryStore) TrustLevel(_ context.Context, toolName, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	level, ok := s.trust[trustKey(toolName, userID)]
	if !ok {
		return "", majelerr.New(majelerr.CodeStoreNotFound, "no trust level configured",
			majelerr.FieldTool(toolName), majelerr.FieldUserID(userID))
	}
	return level, nil
}

func (s *MemoryStore) SetTrustLevel(_ context.Context, toolName, userID, level string) error {
	switch level {
	case TrustAuto, TrustApprove, TrustBlock:
	default:
		return majelerr.New(majelerr.CodeStoreInvalidInput, "unknown trust level", majelerr.Field("level", level))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trust[trustKey(toolName, userID)] = level
	return nil
}

func trustKey(toolName, userID string) string {
	return toolName + "\x00" + userID
}
