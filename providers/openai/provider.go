// Package openai implements the Provider interface for the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/agentsafe/safeagent/providers"
)

// Provider implements providers.Provider for OpenAI.
type Provider struct {
	client *gopenai.Client
	logger *slog.Logger
}

// New creates a new OpenAI provider.
func New(apiKey string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		client: gopenai.NewClient(apiKey),
		logger: logger,
	}
}

// NewWithClient creates a provider around an existing client, e.g. one
// configured for Azure or a compatible proxy.
func NewWithClient(client *gopenai.Client, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{client: client, logger: logger}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Complete generates a completion via the Chat Completions API.
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	apiReq := p.toAPIRequest(req)

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	choice := resp.Choices[0]
	out := &providers.CompletionResponse{
		ID:           resp.ID,
		Content:      choice.Message.Content,
		FinishReason: fromFinishReason(choice.FinishReason),
		Model:        resp.Model,
		Created:      time.Unix(resp.Created, 0),
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				p.logger.Warn("unparseable tool arguments", "tool", tc.Function.Name, "error", err)
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return out, nil
}

func (p *Provider) toAPIRequest(req providers.CompletionRequest) gopenai.ChatCompletionRequest {
	messages := make([]gopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, gopenai.ChatCompletionMessage{
			Role:    gopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, toAPIMessage(msg))
	}

	apiReq := gopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	for _, def := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, gopenai.Tool{
			Type: gopenai.ToolTypeFunction,
			Function: &gopenai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	if req.ToolChoice != "" && len(apiReq.Tools) > 0 {
		apiReq.ToolChoice = req.ToolChoice
	}

	return apiReq
}

func toAPIMessage(msg providers.Message) gopenai.ChatCompletionMessage {
	out := gopenai.ChatCompletionMessage{
		Role:    fromRole(msg.Role),
		Content: msg.Content,
	}

	switch msg.Role {
	case providers.RoleAssistant:
		for _, tc := range msg.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			out.ToolCalls = append(out.ToolCalls, gopenai.ToolCall{
				ID:   tc.ID,
				Type: gopenai.ToolTypeFunction,
				Function: gopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
	case providers.RoleTool:
		out.ToolCallID = msg.ToolCallID
		out.Name = msg.Name
	}

	return out
}

func fromRole(role providers.MessageRole) string {
	switch role {
	case providers.RoleSystem:
		return gopenai.ChatMessageRoleSystem
	case providers.RoleAssistant:
		return gopenai.ChatMessageRoleAssistant
	case providers.RoleTool:
		return gopenai.ChatMessageRoleTool
	default:
		return gopenai.ChatMessageRoleUser
	}
}

func fromFinishReason(reason gopenai.FinishReason) providers.FinishReason {
	switch reason {
	case gopenai.FinishReasonToolCalls:
		return providers.FinishReasonToolCalls
	case gopenai.FinishReasonLength:
		return providers.FinishReasonLength
	case gopenai.FinishReasonStop:
		return providers.FinishReasonStop
	default:
		return providers.FinishReason(reason)
	}
}
