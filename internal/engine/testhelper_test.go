// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Guffawaffle/majel/internal/provider"
	"github.com/Guffawaffle/majel/internal/store"
)

// scriptedReply is one canned conversation step.
type scriptedReply struct {
	reply *provider.Reply
	err   error
}

func textReply(text string) scriptedReply {
	return scriptedReply{reply: &provider.Reply{Text: text}}
}

func callReply(calls ...provider.ToolCall) scriptedReply {
	return scriptedReply{reply: &provider.Reply{Calls: calls}}
}

func errReply(err error) scriptedReply {
	return scriptedReply{err: err}
}

// mockConversation replays a script and records everything sent through it.
type mockConversation struct {
	mu     sync.Mutex
	script []scriptedReply
	sent   [][]provider.Part
}

func (c *mockConversation) Send(_ context.Context, parts ...provider.Part) (*provider.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, parts)

	if len(c.script) == 0 {
		return &provider.Reply{Text: "ok"}, nil
	}
	step := c.script[0]
	c.script = c.script[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.reply, nil
}

func (c *mockConversation) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *mockConversation) sentParts(i int) []provider.Part {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[i]
}

// mockClient hands out mockConversations, consuming one script per handle.
// Once the queue drains, handles answer every Send with plain "ok" text.
type mockClient struct {
	mu      sync.Mutex
	scripts [][]scriptedReply
	configs []provider.ConversationConfig
	convs   []*mockConversation

	createErr error
	closed    bool
}

func newMockClient(scripts ...[]scriptedReply) *mockClient {
	return &mockClient{scripts: scripts}
}

func (m *mockClient) NewConversation(_ context.Context, cfg provider.ConversationConfig) (provider.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}

	// Copy the history slice so later trims cannot alias the record.
	recorded := cfg
	recorded.History = append([]provider.Turn(nil), cfg.History...)
	m.configs = append(m.configs, recorded)

	conv := &mockConversation{}
	if len(m.scripts) > 0 {
		conv.script = m.scripts[0]
		m.scripts = m.scripts[1:]
	}
	m.convs = append(m.convs, conv)
	return conv, nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.configs)
}

func (m *mockClient) config(i int) provider.ConversationConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[i]
}

func (m *mockClient) conversation(i int) *mockConversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.convs[i]
}

// instantRetrier removes the backoff wait from tests.
func instantRetrier() provider.Retrier {
	return provider.Retrier{
		Sleep: func(context.Context, time.Duration) error { return nil },
	}
}

// seededStore returns a memory store with a small fleet plus the store
// itself for trust and proposal assertions.
func seededStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.PutOfficer(&store.Officer{ID: "off-kirk", Name: "James Kirk", Rarity: "epic", Level: 30})
	st.PutOfficer(&store.Officer{ID: "off-spock", Name: "Spock", Rarity: "rare", Level: 25})
	st.PutShip(&store.Ship{ID: "ship-ent", Name: "Enterprise", Tier: 9, Power: 420000})
	st.PutShip(&store.Ship{ID: "ship-sal", Name: "Saladin", Tier: 7, Power: 180000})
	st.PutDock(&store.Dock{ID: 1, ShipID: "ship-ent"})
	return st
}
