// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

// Package engine orchestrates conversational turns: session management,
// the tool-call round loop, trust gating, proposal batching, and response
// sanitization.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Guffawaffle/majel/internal/provider"
	"github.com/Guffawaffle/majel/internal/store"
	"github.com/Guffawaffle/majel/internal/tools"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// defaultTurnTimeout bounds one whole turn: every provider round-trip and
// every tool execution inside it.
const defaultTurnTimeout = 2 * time.Minute

// proposalStoreWarning is appended to the turn's text when staged actions
// could not be persisted. The user must know the batch is gone.
const proposalStoreWarning = "Warning: the staged actions could not be saved for approval. Nothing was executed; please try again."

// ContractRunner is an optional per-turn pipeline hook. Prepare may
// augment the outbound message, Validate may reject the model's text
// (granting one repair round), and Finalize observes the accepted text.
type ContractRunner interface {
	Prepare(ctx context.Context, message string) (string, error)
	Validate(ctx context.Context, text string) error
	Finalize(ctx context.Context, text string) error
}

// Config tunes an Engine. Zero values fall back to defaults.
type Config struct {
	// Model must be one of the known model ids.
	Model string

	// SystemPrompt overrides the roster-derived system prompt when set.
	SystemPrompt string

	MaxRounds           int
	MaxMutationsPerTurn int
	MaxTurns            int
	TurnTimeout         time.Duration

	SessionTTL    time.Duration
	SweepInterval time.Duration
	DisableSweep  bool

	// Retrier overrides the default retry policy when non-zero.
	Retrier provider.Retrier

	// Contract, when set, wraps every turn with the contract pipeline.
	Contract ContractRunner
}

// ChatOptions scope one Chat call to a user and session thread.
type ChatOptions struct {
	UserID     string
	SessionID  string
	Attachment *provider.Blob
}

// ChatResult is one completed turn: the model's text and, if the turn
// staged any approve-tier mutations, the committed proposals. Staged
// items are batched into a single proposal per turn.
type ChatResult struct {
	Text      string
	Proposals []ProposalSummary
}

// Engine is the conversational orchestration core. One Engine serves many
// concurrent users; turns within one session are strictly serialized,
// turns across sessions run concurrently.
type Engine struct {
	client   provider.Client
	store    store.Store
	tools    *tools.Registry
	sessions *SessionRegistry
	loop     *ToolLoop
	batcher  *Batcher
	retrier  provider.Retrier
	contract ContractRunner

	turnTimeout time.Duration

	mu           sync.Mutex
	model        string
	systemPrompt string
}

// New builds an Engine. The model is validated up front; the system
// prompt, unless overridden, is rendered from the fleet roster each time
// a conversation handle is created, so rebuilt handles see the current
// roster.
func New(ctx context.Context, client provider.Client, st store.Store, registry *tools.Registry, cfg Config) (*Engine, error) {
	if client == nil {
		return nil, majelerr.New(majelerr.CodeEngineInvalidInput, "provider client is required")
	}
	if st == nil {
		return nil, majelerr.New(majelerr.CodeEngineInvalidInput, "store is required")
	}
	if registry == nil {
		registry = tools.NewFleetRegistry()
	}

	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel
	}
	if err := provider.ValidateModel(model); err != nil {
		return nil, err
	}

	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}

	e := &Engine{
		client:       client,
		store:        st,
		tools:        registry,
		batcher:      NewBatcher(st),
		retrier:      cfg.Retrier,
		contract:     cfg.Contract,
		turnTimeout:  turnTimeout,
		model:        model,
		systemPrompt: cfg.SystemPrompt,
	}
	e.loop = NewToolLoop(registry, NewTrustGate(st), cfg.Retrier, cfg.MaxRounds, cfg.MaxMutationsPerTurn)
	e.sessions = NewSessionRegistry(e.newConversation, RegistryConfig{
		MaxTurns:      cfg.MaxTurns,
		TTL:           cfg.SessionTTL,
		SweepInterval: cfg.SweepInterval,
		DisableSweep:  cfg.DisableSweep,
	})

	return e, nil
}

// newConversation creates a provider handle with the current model, system
// prompt, tool schemas, and any history to seed it with. Without a
// configured prompt override the roster prompt is rendered fresh per
// handle, so trims, session rebuilds, and model swaps pick up roster
// changes made by mutation tools.
func (e *Engine) newConversation(ctx context.Context, history []provider.Turn) (provider.Conversation, error) {
	e.mu.Lock()
	model := e.model
	systemPrompt := e.systemPrompt
	e.mu.Unlock()

	if systemPrompt == "" {
		rendered, err := BuildSystemPrompt(ctx, e.store)
		if err != nil {
			return nil, majelerr.Wrap(err, majelerr.CodeEngineTurnFailure, "building system prompt")
		}
		systemPrompt = rendered
	}

	return e.client.NewConversation(ctx, provider.ConversationConfig{
		Model:        model,
		SystemPrompt: systemPrompt,
		Tools:        e.tools.Definitions(),
		History:      history,
	})
}

// Chat runs one complete turn: acquire the session, send the message, run
// the tool loop until the model yields text, record history, and commit at
// most one proposal for the staged mutations.
func (e *Engine) Chat(ctx context.Context, message string, opts ChatOptions) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, majelerr.New(majelerr.CodeEngineInvalidInput, "message must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	userID := opts.UserID
	if userID == "" {
		userID = anonUserID
	}
	key := e.sessions.Key(opts.UserID, opts.SessionID)

	turn := &turnContext{
		userID: userID,
		scope:  tools.Scope{Fleet: e.store, UserID: userID},
	}

	outbound := message
	if e.contract != nil {
		prepared, err := e.contract.Prepare(ctx, message)
		if err != nil {
			return nil, majelerr.Wrap(err, majelerr.CodeEngineContractRepair, "preparing contract message")
		}
		outbound = prepared
	}

	var text string
	err := e.sessions.WithSession(ctx, key, func(ctx context.Context, s *Session) error {
		reply, err := provider.Do(ctx, e.retrier, "chat", func(ctx context.Context) (*provider.Reply, error) {
			return s.conv.Send(ctx, chatParts(outbound, opts.Attachment)...)
		})
		if err != nil {
			return err
		}

		if len(reply.Calls) > 0 {
			text, err = e.loop.Run(ctx, s.conv, reply.Calls, turn)
			if err != nil {
				return err
			}
		} else {
			text = reply.Text
		}

		if e.contract != nil {
			text, err = e.repairIfNeeded(ctx, s.conv, text)
			if err != nil {
				return err
			}
		}

		// History records the original message, not the contract-augmented
		// one: a handle rebuild must replay what the user actually said.
		return e.sessions.RecordAndTrim(ctx, s, message, text)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, majelerr.Wrap(err, majelerr.CodeEngineTurnTimeout, "turn deadline exceeded", majelerr.FieldSessionKey(key))
		}
		return nil, err
	}

	result := &ChatResult{Text: text}

	if staged := turn.stagedItems(); len(staged) > 0 {
		summary, err := e.batcher.Commit(ctx, userID, staged)
		if err != nil {
			slog.Error("proposal commit failed, staged actions lost",
				"user_id", userID,
				"session_key", key,
				"items", len(staged),
				"error", err,
			)
			result.Text = strings.TrimRight(result.Text, "\n") + "\n\n" + proposalStoreWarning
		} else {
			result.Proposals = append(result.Proposals, *summary)
		}
	}

	if e.contract != nil {
		if err := e.contract.Finalize(ctx, result.Text); err != nil {
			slog.Warn("contract finalize failed", "session_key", key, "error", err)
		}
	}

	return result, nil
}

// repairIfNeeded validates the turn's text against the contract and, on
// rejection, grants exactly one repair round before giving up.
func (e *Engine) repairIfNeeded(ctx context.Context, conv provider.Conversation, text string) (string, error) {
	verr := e.contract.Validate(ctx, text)
	if verr == nil {
		return text, nil
	}

	reply, err := provider.Do(ctx, e.retrier, "contract repair", func(ctx context.Context) (*provider.Reply, error) {
		return conv.Send(ctx, provider.TextPart("Your previous response was rejected: "+verr.Error()+". Produce a corrected response."))
	})
	if err != nil {
		return "", err
	}

	if err := e.contract.Validate(ctx, reply.Text); err != nil {
		return "", majelerr.Wrap(err, majelerr.CodeEngineContractRepair, "response failed contract validation after repair")
	}
	return reply.Text, nil
}

// chatParts assembles the user message, attachment first so the text can
// refer to it.
func chatParts(message string, attachment *provider.Blob) []provider.Part {
	if attachment == nil {
		return []provider.Part{provider.TextPart(message)}
	}

	return []provider.Part{
		{InlineData: attachment},
		provider.TextPart(message),
	}
}

// History returns the recorded turns for a session, empty if none exists.
func (e *Engine) History(userID, sessionID string) []provider.Turn {
	s, ok := e.sessions.Get(e.sessions.Key(userID, sessionID))
	if !ok {
		return nil
	}
	return s.History()
}

// SessionCount reports the number of live sessions.
func (e *Engine) SessionCount() int {
	return e.sessions.Count()
}

// CloseSession destroys one session thread. Returns whether it existed.
func (e *Engine) CloseSession(userID, sessionID string) bool {
	return e.sessions.Remove(e.sessions.Key(userID, sessionID))
}

// Model returns the active model id.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// SetModel switches the active model. Every session is destroyed: existing
// handles were created against the old model and there is no cross-model
// continuation.
func (e *Engine) SetModel(id string) error {
	if err := provider.ValidateModel(id); err != nil {
		return err
	}

	e.mu.Lock()
	changed := e.model != id
	e.model = id
	e.mu.Unlock()

	if changed {
		e.sessions.ClearAll()
		slog.Info("model changed, all sessions cleared", "model", id)
	}
	return nil
}

// Close stops the eviction sweep and releases the provider client.
func (e *Engine) Close() error {
	e.sessions.Close()
	return e.client.Close()
}
