// Package providers defines provider-agnostic interfaces and domain models for LLM interactions.
package providers

import (
	"context"
	"time"
)

// Provider defines the interface for any LLM provider.
// Implementations: OpenAI, local models, mocks, etc.
type Provider interface {
	// Complete generates a completion for the given request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "mock").
	Name() string
}

// CompletionRequest represents a provider-agnostic request for completion.
type CompletionRequest struct {
	Model             string
	SystemPrompt      string
	Messages          []Message
	Tools             []ToolDefinition
	Temperature       float32
	MaxTokens         int
	ToolChoice        string
	ParallelToolCalls bool
	Metadata          map[string]string
}

// CompletionResponse represents a provider-agnostic completion response.
type CompletionResponse struct {
	ID           string
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        TokenUsage
	Model        string
	Created      time.Time
}

// Message represents a single message in a conversation.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string // For tool result messages
	Name       string // Optional name
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall represents a request from the model to execute a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonToolCalls FinishReason = "tool_calls"
	FinishReasonLength    FinishReason = "length"
	FinishReasonError     FinishReason = "error"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates usage from another response.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
