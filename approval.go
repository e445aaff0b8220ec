package safeagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decision is the three-part answer of an approval callback.
type Decision struct {
	// Approved allows the tool invocation to proceed.
	Approved bool

	// Remember, together with Approved, permanently adds the tool to the
	// safe list for the remainder of the agent's lifetime.
	Remember bool

	// Reason carries the rejection reason. Empty means no reason given.
	Reason string
}

// ApprovalCallback is consulted before an unsafe tool executes. It receives
// the tool name and a formatted argument summary and may block arbitrarily
// long (e.g., waiting on a human). Respect ctx cancellation when blocking.
type ApprovalCallback func(ctx context.Context, toolName, formattedArgs string) (Decision, error)

// AutoApprove is a callback that unconditionally approves every tool,
// intended for non-interactive use.
func AutoApprove(ctx context.Context, toolName, formattedArgs string) (Decision, error) {
	return Decision{Approved: true}, nil
}

// RejectionCode is the error code carried by rejection payloads.
const RejectionCode = "TOOL_REJECTED"

// Rejection is the structured payload a wrapped tool returns when the call
// is denied. It is a normal tool result, not an invocation error, so the
// reasoning loop can react to it like any other tool output.
type Rejection struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Tool    string `json:"tool"`
}

// JSON encodes the rejection as the tool's textual output.
func (r Rejection) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error":%q,"message":%q,"tool":%q}`, r.Code, r.Message, r.Tool)
	}
	return string(data)
}

// ParseRejection reports whether a tool output is a rejection payload.
func ParseRejection(output string) (Rejection, bool) {
	var r Rejection
	if err := json.Unmarshal([]byte(output), &r); err != nil {
		return Rejection{}, false
	}
	if r.Code != RejectionCode {
		return Rejection{}, false
	}
	return r, true
}

// wrapToolWithApproval returns a copy of the tool whose invocation consults
// the approval callback first. Wrapping is idempotent: an already-wrapped
// tool is returned unchanged. Tools without an invocation function cannot be
// wrapped and pass through as-is.
func (s *SafeAgent) wrapToolWithApproval(tool Tool) Tool {
	if tool.approvalWrapped {
		return tool
	}
	if !tool.Invocable() {
		s.debugf("tool has no invocation function, cannot wrap", "tool", tool.name)
		return tool
	}

	original := tool.invoke
	name := tool.name

	wrapped := tool
	wrapped.approvalWrapped = true
	wrapped.invoke = func(ctx context.Context, payload string) (string, error) {
		formatted := formatArgs(payload)

		emitEvent(ctx, ApprovalRequired(name, formatted))
		decision, err := s.approve(ctx, name, formatted)
		if err != nil {
			// A failing callback cannot grant approval; treat it as a denial.
			s.debugf("approval callback failed", "tool", name, "error", err)
			decision = Decision{Reason: err.Error()}
		}

		if decision.Approved {
			if decision.Remember {
				s.AddSafeTool(name)
			}
			emitEvent(ctx, ApprovalGranted(name))
			return original(ctx, payload)
		}

		if s.haltOnRejection {
			reason := decision.Reason
			if reason == "" {
				reason = "User rejected"
			}
			s.haltRun(ctx, fmt.Sprintf("%s the %s tool", reason, name))
			s.debugf("halt flag set after rejection", "tool", name)
		}

		emitEvent(ctx, ApprovalDenied(name, decision.Reason))

		message := decision.Reason
		if message == "" {
			message = "User rejected tool call"
		}
		return Rejection{Code: RejectionCode, Message: message, Tool: name}.JSON(), nil
	}

	s.debugf("wrapped tool with approval checks", "tool", name)
	return wrapped
}

// haltRun sets the halt flag on the run carried by the context, falling back
// to the agent's current run when tools are invoked outside a runner.
func (s *SafeAgent) haltRun(ctx context.Context, reason string) {
	if run, ok := RunFromContext(ctx); ok {
		run.Halt(reason)
		return
	}
	s.CurrentRun().Halt(reason)
}

// formatArgs renders a JSON argument payload as "key: value" pairs separated
// by commas, preserving the order keys appear in the payload. Anything that
// is not a JSON object falls back to the raw payload text; formatting must
// never abort the call.
func formatArgs(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return ""
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return payload
	}

	var parts []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return payload
		}
		key, ok := keyTok.(string)
		if !ok {
			return payload
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return payload
		}
		parts = append(parts, key+": "+formatArgValue(val))
	}

	return strings.Join(parts, ", ")
}

func formatArgValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
