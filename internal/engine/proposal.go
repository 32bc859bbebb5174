// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Guffawaffle/majel/internal/store"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// proposalTTL is how long a committed proposal stays approvable.
const proposalTTL = 15 * time.Minute

// ProposalItem is one staged mutation as surfaced to the caller.
type ProposalItem struct {
	Tool    string
	Preview string
}

// ProposalSummary is what the engine returns about a committed batch. The
// engine holds no other reference to the proposal after commit.
type ProposalSummary struct {
	ID        string
	Items     []ProposalItem
	ExpiresAt time.Time
}

// Batcher accumulates approve-tier calls from one turn and commits them as
// a single proposal. One Batcher instance is turn-local; the store it
// writes to is shared.
type Batcher struct {
	proposals store.ProposalStore
	now       func() time.Time
}

// NewBatcher returns a Batcher over the given proposal store.
func NewBatcher(proposals store.ProposalStore) *Batcher {
	return &Batcher{
		proposals: proposals,
		now:       time.Now,
	}
}

// Commit creates exactly one proposal from the staged items, scoped to
// userID. An empty batch commits to nothing and returns (nil, nil). The
// batch hash covers the serialized items so identical batches are
// recognizable in audit.
func (b *Batcher) Commit(ctx context.Context, userID string, items []store.ProposalItem) (*ProposalSummary, error) {
	if len(items) == 0 {
		return nil, nil
	}

	hash, err := hashItems(items)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeStoreInvalidInput, "hashing proposal batch")
	}

	now := b.now()
	created, err := b.proposals.CreateProposal(ctx, &store.Proposal{
		ID:        uuid.New().String(),
		UserID:    userID,
		ArgsHash:  hash,
		Items:     items,
		CreatedAt: now,
		ExpiresAt: now.Add(proposalTTL),
	})
	if err != nil {
		return nil, err
	}

	summary := &ProposalSummary{
		ID:        created.ID,
		ExpiresAt: created.ExpiresAt,
	}
	for _, item := range created.Items {
		summary.Items = append(summary.Items, ProposalItem{Tool: item.Tool, Preview: item.Preview})
	}
	return summary, nil
}

// hashItems computes a stable hash over the serialized batch. Map keys
// marshal in sorted order, so equal batches hash equally.
func hashItems(items []store.ProposalItem) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
