package safeagent

import (
	"context"
	"errors"

	"github.com/agentsafe/safeagent/providers"
)

// InvokeFunc executes a tool. The payload is a JSON encoding of the call
// arguments; the return value is the tool's textual result.
type InvokeFunc func(ctx context.Context, payload string) (string, error)

// ErrNotInvocable is returned when Invoke is called on a tool without an
// invocation function (e.g., a hosted or declarative tool).
var ErrNotInvocable = errors.New("safeagent: tool is not invocable")

// Tool represents a named, schema-described capability an agent can call.
// Tools are value types: wrapping a tool produces a new value that shares the
// schema but replaces the invocation function, leaving the original intact.
type Tool struct {
	name        string
	description string
	parameters  map[string]any
	invoke      InvokeFunc

	// set by wrapToolWithApproval so a tool is never wrapped twice
	approvalWrapped bool
}

// Name returns the tool name.
func (t Tool) Name() string { return t.name }

// Description returns the human-readable tool description.
func (t Tool) Description() string { return t.description }

// Parameters returns the JSON schema of the tool's arguments.
func (t Tool) Parameters() map[string]any { return t.parameters }

// Invocable reports whether the tool carries an invocation function.
func (t Tool) Invocable() bool { return t.invoke != nil }

// Invoke runs the tool with the given JSON payload.
func (t Tool) Invoke(ctx context.Context, payload string) (string, error) {
	if t.invoke == nil {
		return "", ErrNotInvocable
	}
	return t.invoke(ctx, payload)
}

// Definition converts the tool to a provider-agnostic tool definition.
func (t Tool) Definition() providers.ToolDefinition {
	return providers.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}

// ToolBuilder constructs tools with a fluent API.
type ToolBuilder struct {
	tool Tool
}

// NewTool creates a new tool builder.
func NewTool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool: Tool{
			name:       name,
			parameters: map[string]any{},
		},
	}
}

// WithDescription sets the tool description.
func (tb *ToolBuilder) WithDescription(desc string) *ToolBuilder {
	tb.tool.description = desc
	return tb
}

// WithParameter adds a named parameter to the tool's object schema.
func (tb *ToolBuilder) WithParameter(name string, schema *ParameterSchema) *ToolBuilder {
	if tb.tool.parameters["properties"] == nil {
		tb.tool.parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		}
	}

	props := tb.tool.parameters["properties"].(map[string]any)
	props[name] = schema.ToMap()

	if schema.required {
		required := tb.tool.parameters["required"].([]string)
		tb.tool.parameters["required"] = append(required, name)
	}

	return tb
}

// WithRawParameters sets the full parameters schema for complex tools.
func (tb *ToolBuilder) WithRawParameters(params map[string]any) *ToolBuilder {
	tb.tool.parameters = params
	return tb
}

// WithInvoke sets the tool invocation function.
func (tb *ToolBuilder) WithInvoke(fn InvokeFunc) *ToolBuilder {
	tb.tool.invoke = fn
	return tb
}

// Build returns the constructed tool.
func (tb *ToolBuilder) Build() Tool {
	return tb.tool
}

// ParameterSchema defines a single tool parameter.
type ParameterSchema struct {
	paramType   string
	description string
	required    bool
	enum        []string
}

// String creates a string parameter schema.
func String() *ParameterSchema {
	return &ParameterSchema{paramType: "string"}
}

// Integer creates an integer parameter schema.
func Integer() *ParameterSchema {
	return &ParameterSchema{paramType: "integer"}
}

// Boolean creates a boolean parameter schema.
func Boolean() *ParameterSchema {
	return &ParameterSchema{paramType: "boolean"}
}

// WithDescription sets the parameter description.
func (ps *ParameterSchema) WithDescription(desc string) *ParameterSchema {
	ps.description = desc
	return ps
}

// Required marks the parameter as required.
func (ps *ParameterSchema) Required() *ParameterSchema {
	ps.required = true
	return ps
}

// WithEnum restricts the parameter to the given values.
func (ps *ParameterSchema) WithEnum(values ...string) *ParameterSchema {
	ps.enum = values
	return ps
}

// ToMap converts the schema to its JSON Schema map form.
func (ps *ParameterSchema) ToMap() map[string]any {
	m := map[string]any{
		"type": ps.paramType,
	}
	if ps.description != "" {
		m["description"] = ps.description
	}
	if len(ps.enum) > 0 {
		m["enum"] = ps.enum
	}
	return m
}
