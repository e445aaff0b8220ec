// Package mock implements a scripted Provider for testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentsafe/safeagent/providers"
)

// ErrNoResponse is returned when the script runs out of responses.
var ErrNoResponse = errors.New("mock: no response configured")

// Provider implements providers.Provider with a fixed script of responses,
// consumed in order. It records every request it receives.
type Provider struct {
	mu        sync.Mutex
	responses []*providers.CompletionResponse
	requests  []providers.CompletionRequest
}

// New creates a new mock provider.
func New() *Provider {
	return &Provider{}
}

// WithResponse appends a scripted completion response. A response with tool
// calls finishes with "tool_calls", otherwise "stop".
func (m *Provider) WithResponse(content string, toolCalls []providers.ToolCall) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp := &providers.CompletionResponse{
		ID:           fmt.Sprintf("mock-resp-%d", len(m.responses)+1),
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: providers.FinishReasonStop,
		Model:        "mock-model",
		Created:      time.Now(),
		Usage: providers.TokenUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}
	if len(toolCalls) > 0 {
		resp.FinishReason = providers.FinishReasonToolCalls
	}

	m.responses = append(m.responses, resp)
	return m
}

// WithFinalResponse appends a scripted response without tool calls.
func (m *Provider) WithFinalResponse(content string) *Provider {
	return m.WithResponse(content, nil)
}

// Name returns the provider name.
func (m *Provider) Name() string {
	return "mock"
}

// Complete returns the next scripted response.
func (m *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return nil, ErrNoResponse
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

// CallCount returns how many times Complete was called.
func (m *Provider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all requests received so far.
func (m *Provider) Requests() []providers.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]providers.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
