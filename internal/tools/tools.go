// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/Guffawaffle/majel/internal/provider"
	"github.com/Guffawaffle/majel/internal/store"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// Scope is the context a tool executes against: the stores it may touch
// and the user the call is made on behalf of.
type Scope struct {
	Fleet  store.FleetStore
	UserID string
}

// Handler executes one tool call and returns a JSON-serializable value.
type Handler func(ctx context.Context, scope Scope, args map[string]any) (any, error)

// PreviewFunc renders a one-line human-readable summary of a mutation,
// shown to the approver in a proposal batch.
type PreviewFunc func(args map[string]any) string

// Tool couples a handler with its schema and mutation flag. The flag lives
// here, next to the handler, so the trust gate consults it by construction
// rather than by convention.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Mutating    bool
	Preview     PreviewFunc
	Handler     Handler
}

// Registry is a thread-safe name → tool mapping.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool. Mutating tools must carry a preview template.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return majelerr.New(majelerr.CodeStoreInvalidInput, "tool name must not be empty")
	}
	if t.Handler == nil {
		return majelerr.New(majelerr.CodeStoreInvalidInput, "tool handler must not be nil", majelerr.FieldTool(t.Name))
	}
	if t.Mutating && t.Preview == nil {
		return majelerr.New(majelerr.CodeStoreInvalidInput, "mutating tool requires a preview", majelerr.FieldTool(t.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[t.Name]; ok {
		return majelerr.New(majelerr.CodeStoreConflict, "tool already registered", majelerr.FieldTool(t.Name))
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool for the given name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all registered tool schemas for the provider request.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return defs
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", majelerr.Errorf(majelerr.CodeToolInvalidArgument, "missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", majelerr.Errorf(majelerr.CodeToolInvalidArgument, "argument %q must be a non-empty string", key)
	}
	return s, nil
}

// intArg extracts a required integer argument. Model-produced JSON numbers
// arrive as float64.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, majelerr.Errorf(majelerr.CodeToolInvalidArgument, "missing argument %q", key)
	}

	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, majelerr.Errorf(majelerr.CodeToolInvalidArgument, "argument %q must be a number", key)
	}
}

// argOrPlaceholder renders a preview fragment even when the model sent a
// malformed argument; previews must never fail.
func argOrPlaceholder(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return "?"
}
