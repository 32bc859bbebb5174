// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package google

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/Guffawaffle/majel/internal/provider"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey string
}

// Client implements provider.Client using the Google Gemini API. Each
// conversation handle wraps a genai chat session, whose internal history
// buffer is the provider-side context the engine must rebuild after trims.
type Client struct {
	client *genai.Client
}

// Compile-time interface check.
var _ provider.Client = (*Client)(nil)

// New creates a Google client. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, majelerr.New(majelerr.CodeProviderRequestInvalid, "google: missing api_key in config")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, majelerr.Wrapf(err, majelerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Client{client: client}, nil
}

// NewConversation opens a fresh chat session seeded with the given history.
func (c *Client) NewConversation(ctx context.Context, cfg provider.ConversationConfig) (provider.Conversation, error) {
	genCfg := &genai.GenerateContentConfig{}

	if cfg.SystemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: cfg.SystemPrompt},
			},
		}
	}

	if len(cfg.Tools) > 0 {
		genCfg.Tools = convertTools(cfg.Tools)
	}

	chat, err := c.client.Chats.Create(ctx, cfg.Model, genCfg, convertHistory(cfg.History))
	if err != nil {
		return nil, wrapAPIError(err, "google: creating chat session")
	}

	return &conversation{chat: chat}, nil
}

func (c *Client) Close() error { return nil }

// conversation adapts a genai chat session to provider.Conversation.
type conversation struct {
	chat *genai.Chat
}

func (c *conversation) Send(ctx context.Context, parts ...provider.Part) (*provider.Reply, error) {
	gparts := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		gparts = append(gparts, convertPart(p))
	}

	resp, err := c.chat.SendMessage(ctx, gparts...)
	if err != nil {
		return nil, wrapAPIError(err, "google: sending message")
	}

	reply := &provider.Reply{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		reply.Calls = append(reply.Calls, provider.ToolCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}

	return reply, nil
}

func convertPart(p provider.Part) genai.Part {
	switch {
	case p.FunctionResponse != nil:
		return genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       p.FunctionResponse.ID,
				Name:     p.FunctionResponse.Name,
				Response: p.FunctionResponse.Response,
			},
		}
	case p.InlineData != nil:
		return genai.Part{
			InlineData: &genai.Blob{
				MIMEType: p.InlineData.MIMEType,
				Data:     p.InlineData.Data,
			},
		}
	default:
		return genai.Part{Text: p.Text}
	}
}

func convertHistory(turns []provider.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range turns {
		role := genai.RoleUser
		if turn.Role == provider.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: turn.Text},
			},
		})
	}
	return contents
}

func convertTools(tools []provider.ToolDefinition) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return []*genai.Tool{
		{FunctionDeclarations: decls},
	}
}

// wrapAPIError converts a genai error into the taxonomy, attaching the
// HTTP status so the retry wrapper can classify transient failures.
func wrapAPIError(err error, msg string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		code := majelerr.CodeProviderUpstreamFailure
		if apiErr.Code == 429 {
			code = majelerr.CodeProviderRateLimited
		}
		return majelerr.Wrap(err, code, msg, majelerr.FieldStatus(apiErr.Code))
	}

	return majelerr.Wrapf(err, majelerr.CodeProviderUpstreamFailure, "%s", msg)
}
