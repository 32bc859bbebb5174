// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Guffawaffle/majel/internal/provider"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

const (
	// defaultMaxTurns is the history cap in user/model pairs. Beyond it the
	// oldest pairs are dropped and the provider handle is rebuilt.
	defaultMaxTurns = 50

	// defaultSessionTTL is the idle time after which the sweep evicts a session.
	defaultSessionTTL = 30 * time.Minute

	// defaultSweepInterval is how often the eviction sweep runs.
	defaultSweepInterval = 5 * time.Minute

	// anonUserID and defaultSessionID fill in the session key when the
	// caller provides no user or session id.
	anonUserID       = "anon"
	defaultSessionID = "default"
)

// conversationFactory builds a fresh provider handle seeded with history.
type conversationFactory func(ctx context.Context, history []provider.Turn) (provider.Conversation, error)

// Session is one conversational thread: the provider handle it exclusively
// owns, the local history, and the lock that serializes access. All fields
// except key are guarded by mu.
type Session struct {
	key        string
	mu         sync.Mutex
	conv       provider.Conversation
	history    []provider.Turn
	lastAccess time.Time
}

// History returns a copy of the session's turn records.
func (s *Session) History() []provider.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Turn(nil), s.history...)
}

// SessionRegistry owns the session map, per-session serialization, TTL
// eviction, and history trimming.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	factory  conversationFactory
	maxTurns int
	ttl      time.Duration

	sweepDone chan struct{}
	sweepOnce sync.Once
}

// RegistryConfig tunes a SessionRegistry. Zero values fall back to the
// defaults above; DisableSweep turns eviction off entirely (test config).
type RegistryConfig struct {
	MaxTurns      int
	TTL           time.Duration
	SweepInterval time.Duration
	DisableSweep  bool
}

// NewSessionRegistry creates a registry and, unless disabled, starts the
// background eviction sweep.
func NewSessionRegistry(factory conversationFactory, cfg RegistryConfig) *SessionRegistry {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	r := &SessionRegistry{
		sessions:  make(map[string]*Session),
		factory:   factory,
		maxTurns:  maxTurns,
		ttl:       ttl,
		sweepDone: make(chan struct{}),
	}

	if !cfg.DisableSweep {
		go r.runSweep(interval)
	}

	return r
}

// Key derives the namespaced session key. Two users never share a key even
// with identical session ids.
func (r *SessionRegistry) Key(userID, sessionID string) string {
	if userID == "" {
		userID = anonUserID
	}
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	return "user:" + userID + "/" + sessionID
}

// defaultKey is the reserved key the sweep never evicts.
func (r *SessionRegistry) defaultKey() string {
	return r.Key("", "")
}

// WithSession runs fn while holding the session's lock, creating the
// session (with an empty history and a fresh provider handle) on first
// use. Calls for the same key are strictly serialized; the second caller
// observes the first caller's completed history and rebuilt handle.
func (r *SessionRegistry) WithSession(ctx context.Context, key string, fn func(ctx context.Context, s *Session) error) error {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = &Session{key: key, lastAccess: time.Now()}
		r.sessions[key] = s
	}
	r.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAccess = time.Now()

	// The provider handle is created lazily under the session lock so the
	// network call never blocks other sessions.
	if s.conv == nil {
		conv, err := r.factory(ctx, s.history)
		if err != nil {
			return majelerr.Wrap(err, majelerr.CodeEngineTurnFailure, "creating session handle", majelerr.FieldSessionKey(key))
		}
		s.conv = conv
	}

	err := fn(ctx, s)
	s.lastAccess = time.Now()
	return err
}

// RecordAndTrim appends the completed user/model pair and, if the pair
// count exceeds the limit, drops the oldest pairs and rebuilds the provider
// handle from the retained history. The rebuild is mandatory: the
// provider's internal buffer otherwise keeps the dropped turns and token
// cost grows without bound. Caller must hold the session lock (i.e. run
// inside WithSession).
func (r *SessionRegistry) RecordAndTrim(ctx context.Context, s *Session, userText, modelText string) error {
	s.history = append(s.history,
		provider.Turn{Role: provider.RoleUser, Text: userText},
		provider.Turn{Role: provider.RoleModel, Text: modelText},
	)

	pairs := len(s.history) / 2
	if pairs <= r.maxTurns {
		return nil
	}

	s.history = append([]provider.Turn(nil), s.history[2*(pairs-r.maxTurns):]...)

	conv, err := r.factory(ctx, s.history)
	if err != nil {
		// The stale handle still carries the untrimmed buffer; drop it so
		// the next turn forces a rebuild rather than resurrecting it.
		s.conv = nil
		return majelerr.Wrap(err, majelerr.CodeEngineTurnFailure, "rebuilding session handle after trim", majelerr.FieldSessionKey(s.key))
	}
	s.conv = conv
	return nil
}

// Get returns the session for key if present.
func (r *SessionRegistry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Remove destroys the session for key. Returns whether it existed.
func (r *SessionRegistry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[key]
	delete(r.sessions, key)
	return ok
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ClearAll destroys every session. Used on model swap: a model change
// invalidates every existing handle and there is no cross-model
// continuation.
func (r *SessionRegistry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}

// Sweep evicts sessions idle past the TTL, skipping the reserved default
// key and any session whose lock is currently held by an in-flight call.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	now := time.Now()
	for key, s := range r.sessions {
		if key == r.defaultKey() {
			continue
		}
		if !s.mu.TryLock() {
			// In-flight call holds the lock; never destroy state out from
			// under it.
			continue
		}
		idle := now.Sub(s.lastAccess)
		s.mu.Unlock()

		if idle > r.ttl {
			delete(r.sessions, key)
			evicted++
		}
	}

	if evicted > 0 {
		slog.Debug("session sweep evicted idle sessions", "evicted", evicted, "remaining", len(r.sessions))
	}
	return evicted
}

func (r *SessionRegistry) runSweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.sweepDone:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops the eviction sweep. Idempotent.
func (r *SessionRegistry) Close() {
	r.sweepOnce.Do(func() {
		close(r.sweepDone)
	})
}
