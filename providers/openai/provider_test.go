package openai

import (
	"encoding/json"
	"testing"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/agentsafe/safeagent/providers"
)

func TestToAPIRequest(t *testing.T) {
	p := New("test-key", nil)

	req := providers.CompletionRequest{
		Model:        "gpt-4o",
		SystemPrompt: "be careful",
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: "hello"},
		},
		Tools: []providers.ToolDefinition{
			{Name: "write_file", Description: "writes a file", Parameters: map[string]any{"type": "object"}},
		},
		ToolChoice:  "auto",
		Temperature: 0.3,
	}

	apiReq := p.toAPIRequest(req)

	if apiReq.Model != "gpt-4o" {
		t.Errorf("model = %q", apiReq.Model)
	}
	if len(apiReq.Messages) != 2 {
		t.Fatalf("messages = %d, want 2 (system + user)", len(apiReq.Messages))
	}
	if apiReq.Messages[0].Role != gopenai.ChatMessageRoleSystem || apiReq.Messages[0].Content != "be careful" {
		t.Errorf("system message = %+v", apiReq.Messages[0])
	}
	if len(apiReq.Tools) != 1 || apiReq.Tools[0].Function.Name != "write_file" {
		t.Errorf("tools = %+v", apiReq.Tools)
	}
	if apiReq.ToolChoice != "auto" {
		t.Errorf("tool choice = %v", apiReq.ToolChoice)
	}
}

func TestToAPIRequest_NoToolChoiceWithoutTools(t *testing.T) {
	p := New("test-key", nil)

	apiReq := p.toAPIRequest(providers.CompletionRequest{ToolChoice: "auto"})
	if apiReq.ToolChoice != nil {
		t.Errorf("tool choice = %v, want unset without tools", apiReq.ToolChoice)
	}
}

func TestToAPIMessage_AssistantToolCalls(t *testing.T) {
	msg := providers.Message{
		Role:    providers.RoleAssistant,
		Content: "",
		ToolCalls: []providers.ToolCall{
			{ID: "call_1", Name: "write_file", Arguments: map[string]any{"path": "/tmp/a"}},
		},
	}

	out := toAPIMessage(msg)

	if out.Role != gopenai.ChatMessageRoleAssistant {
		t.Errorf("role = %q", out.Role)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(out.ToolCalls))
	}
	tc := out.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != "write_file" {
		t.Errorf("tool call = %+v", tc)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["path"] != "/tmp/a" {
		t.Errorf("arguments = %v", args)
	}
}

func TestToAPIMessage_ToolResult(t *testing.T) {
	msg := providers.Message{
		Role:       providers.RoleTool,
		Content:    `{"error":"TOOL_REJECTED"}`,
		ToolCallID: "call_1",
		Name:       "write_file",
	}

	out := toAPIMessage(msg)

	if out.Role != gopenai.ChatMessageRoleTool {
		t.Errorf("role = %q", out.Role)
	}
	if out.ToolCallID != "call_1" || out.Name != "write_file" {
		t.Errorf("message = %+v", out)
	}
}

func TestFromFinishReason(t *testing.T) {
	tests := []struct {
		in   gopenai.FinishReason
		want providers.FinishReason
	}{
		{gopenai.FinishReasonStop, providers.FinishReasonStop},
		{gopenai.FinishReasonToolCalls, providers.FinishReasonToolCalls},
		{gopenai.FinishReasonLength, providers.FinishReasonLength},
	}
	for _, tt := range tests {
		if got := fromFinishReason(tt.in); got != tt.want {
			t.Errorf("fromFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
