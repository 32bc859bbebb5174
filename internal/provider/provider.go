// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package provider

import "context"

// Role identifies the author of a recorded conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one recorded conversational turn. The engine keeps turns in
// insertion order; the provider rebuilds its context from them after a trim.
type Turn struct {
	Role Role
	Text string
}

// ToolCall is a structured request from the model to invoke a named tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse carries a named tool result back to the model.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Blob is inline binary content, e.g. an image attachment.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one piece of an outbound message. Exactly one field is set.
type Part struct {
	Text             string
	FunctionResponse *FunctionResponse
	InlineData       *Blob
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// Reply is the model's answer to one Send: free text, zero or more
// requested tool calls, or both.
type Reply struct {
	Text  string
	Calls []ToolCall
}

// ToolDefinition describes a tool exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ConversationConfig is the handle-creation configuration: model, system
// prompt, tool schemas, and any prior history to seed the provider-side
// context with.
type ConversationConfig struct {
	Model        string
	SystemPrompt string
	Tools        []ToolDefinition
	History      []Turn
}

// Conversation is an opaque provider-side conversation handle. The provider
// keeps its own internal buffer of everything sent through the handle; the
// engine must never assume that buffer matches its local history.
type Conversation interface {
	Send(ctx context.Context, parts ...Part) (*Reply, error)
}

// Client creates conversation handles against one model provider.
type Client interface {
	NewConversation(ctx context.Context, cfg ConversationConfig) (Conversation, error)
	Close() error
}
