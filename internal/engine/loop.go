// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Guffawaffle/majel/internal/provider"
	"github.com/Guffawaffle/majel/internal/store"
	"github.com/Guffawaffle/majel/internal/tools"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

const (
	// defaultMaxRounds bounds the tool loop: provider call → tool dispatch →
	// provider call, per turn.
	defaultMaxRounds = 5

	// defaultMaxMutationsPerTurn bounds how many mutation-capable calls one
	// turn may process, across auto execution and approval staging.
	defaultMaxMutationsPerTurn = 5
)

// summarizePrompt is the forced final request when the round limit is hit
// without a textual response.
const summarizePrompt = "Summarize the tool results so far for the user in plain language."

// turnContext carries the turn-local mutable state through the round loop:
// the pending approval batch and the mutation counter. It is never shared
// across sessions or calls; passing it explicitly keeps the state machine's
// inputs auditable.
type turnContext struct {
	userID string
	scope  tools.Scope

	mu        sync.Mutex
	staged    []store.ProposalItem
	mutations int
}

// tryMutation reserves one slot of the turn's mutation budget.
func (t *turnContext) tryMutation(budget int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mutations >= budget {
		return false
	}
	t.mutations++
	return true
}

func (t *turnContext) stage(item store.ProposalItem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staged = append(t.staged, item)
}

func (t *turnContext) stagedItems() []store.ProposalItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]store.ProposalItem(nil), t.staged...)
}

// ToolLoop is the per-turn state machine: it executes requested tool calls
// through the trust gate and sanitizer, feeds the batched results back to
// the provider handle, and repeats until the provider yields text or the
// round limit forces a summary.
type ToolLoop struct {
	tools        *tools.Registry
	gate         *TrustGate
	retrier      provider.Retrier
	maxRounds    int
	maxMutations int
}

// NewToolLoop creates a ToolLoop. Zero limits fall back to the defaults.
func NewToolLoop(registry *tools.Registry, gate *TrustGate, retrier provider.Retrier, maxRounds, maxMutations int) *ToolLoop {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if maxMutations <= 0 {
		maxMutations = defaultMaxMutationsPerTurn
	}

	return &ToolLoop{
		tools:        registry,
		gate:         gate,
		retrier:      retrier,
		maxRounds:    maxRounds,
		maxMutations: maxMutations,
	}
}

// Run drives the round loop for one turn. Individual tool failures become
// error-shaped tool responses and never abort the turn; provider failures
// propagate after the retry wrapper gives up.
func (l *ToolLoop) Run(ctx context.Context, conv provider.Conversation, calls []provider.ToolCall, turn *turnContext) (string, error) {
	for round := 0; round < l.maxRounds; round++ {
		responses := l.executeRound(ctx, calls, turn)

		// All tool responses for the round go back in one batched message,
		// preserving round ordering.
		reply, err := provider.Do(ctx, l.retrier, "tool round", func(ctx context.Context) (*provider.Reply, error) {
			return conv.Send(ctx, responses...)
		})
		if err != nil {
			return "", err
		}

		if len(reply.Calls) == 0 {
			return reply.Text, nil
		}
		calls = reply.Calls
	}

	slog.Warn("tool loop hit round limit, forcing summary", "rounds", l.maxRounds, "pending_calls", len(calls))

	reply, err := provider.Do(ctx, l.retrier, "forced summary", func(ctx context.Context) (*provider.Reply, error) {
		return conv.Send(ctx, provider.TextPart(summarizePrompt))
	})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// executeRound runs all calls of one round concurrently. Independent tools
// must not block each other; response order matches call order.
func (l *ToolLoop) executeRound(ctx context.Context, calls []provider.ToolCall, turn *turnContext) []provider.Part {
	responses := make([]provider.Part, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			responses[i] = l.executeCall(gctx, call, turn)
			return nil
		})
	}
	// Workers only record into their own slot and never return errors.
	_ = g.Wait()

	return responses
}

// executeCall resolves one tool call to a sanitized function response.
func (l *ToolLoop) executeCall(ctx context.Context, call provider.ToolCall, turn *turnContext) provider.Part {
	tool, ok := l.tools.Get(call.Name)
	if !ok {
		return errorResponse(call, "unknown tool %q", call.Name)
	}

	if tool.Mutating {
		switch l.gate.Classify(ctx, call.Name, turn.userID) {
		case TrustBlock:
			return errorResponse(call, "tool %q is locked by trust policy and was not executed; it must be explicitly unlocked before Majel can run it", call.Name)
		case TrustApprove:
			if !turn.tryMutation(l.maxMutations) {
				return errorResponse(call, "mutation budget for this turn exceeded (max %d); %q was not executed or staged", l.maxMutations, call.Name)
			}
			preview := tool.Preview(call.Args)
			turn.stage(store.ProposalItem{Tool: call.Name, Args: call.Args, Preview: preview})
			return functionResponse(call, map[string]any{
				"status":  "staged",
				"preview": preview,
				"detail":  "This action requires approval. It was staged for review and has not been executed.",
			})
		case TrustAuto:
			if !turn.tryMutation(l.maxMutations) {
				return errorResponse(call, "mutation budget for this turn exceeded (max %d); %q was not executed or staged", l.maxMutations, call.Name)
			}
		}
	}

	result, err := l.invoke(ctx, tool, turn.scope, call.Args)
	if err != nil {
		slog.Warn("tool execution failed", "tool", call.Name, "error", err)
		return errorResponse(call, "tool %q failed: %s", call.Name, err.Error())
	}

	return functionResponse(call, result)
}

// invoke runs a tool handler with panic recovery and converts the result to
// a plain JSON value.
func (l *ToolLoop) invoke(ctx context.Context, tool *tools.Tool, scope tools.Scope, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool handler panic recovered",
				"tool", tool.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = majelerr.Errorf(majelerr.CodeToolExecutionFailure, "tool handler panic: %v", r)
		}
	}()

	out, err := tool.Handler(ctx, scope, args)
	if err != nil {
		return nil, err
	}
	return toJSONValue(out)
}

// toJSONValue round-trips v through JSON so every tool result is reduced to
// maps, slices, and scalars the sanitizer can walk.
func toJSONValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeToolExecutionFailure, "serializing tool result")
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, majelerr.Wrap(err, majelerr.CodeToolExecutionFailure, "deserializing tool result")
	}
	return out, nil
}

// functionResponse wraps a sanitized value as a named function response.
// Every payload passes through the sanitizer, auto-tier included.
func functionResponse(call provider.ToolCall, value any) provider.Part {
	response, ok := Sanitize(value).(map[string]any)
	if !ok {
		response = map[string]any{"result": Sanitize(value)}
	}

	return provider.Part{
		FunctionResponse: &provider.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: response,
		},
	}
}

func errorResponse(call provider.ToolCall, format string, args ...any) provider.Part {
	return functionResponse(call, map[string]any{
		"error": majelerr.Errorf(majelerr.CodeToolExecutionFailure, format, args...).Error(),
	})
}
