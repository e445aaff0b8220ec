package safeagent

import (
	"context"
	"errors"
	"testing"
)

func TestToolBuilder(t *testing.T) {
	tool := NewTool("write_file").
		WithDescription("writes a file").
		WithParameter("path", String().WithDescription("target path").Required()).
		WithParameter("mode", String().WithEnum("append", "truncate")).
		WithParameter("size", Integer()).
		WithParameter("force", Boolean()).
		WithInvoke(func(ctx context.Context, payload string) (string, error) {
			return "written", nil
		}).
		Build()

	if tool.Name() != "write_file" {
		t.Errorf("Name = %q", tool.Name())
	}
	if tool.Description() != "writes a file" {
		t.Errorf("Description = %q", tool.Description())
	}
	if !tool.Invocable() {
		t.Error("tool with invoke must be invocable")
	}

	params := tool.Parameters()
	if params["type"] != "object" {
		t.Errorf("schema type = %v, want object", params["type"])
	}

	props := params["properties"].(map[string]any)
	path := props["path"].(map[string]any)
	if path["type"] != "string" || path["description"] != "target path" {
		t.Errorf("path schema = %v", path)
	}
	mode := props["mode"].(map[string]any)
	enum := mode["enum"].([]string)
	if len(enum) != 2 || enum[0] != "append" {
		t.Errorf("mode enum = %v", enum)
	}
	if props["size"].(map[string]any)["type"] != "integer" {
		t.Error("size must be integer")
	}
	if props["force"].(map[string]any)["type"] != "boolean" {
		t.Error("force must be boolean")
	}

	required := params["required"].([]string)
	if len(required) != 1 || required[0] != "path" {
		t.Errorf("required = %v, want [path]", required)
	}
}

func TestTool_InvokeNotInvocable(t *testing.T) {
	tool := NewTool("hosted_search").Build()

	if tool.Invocable() {
		t.Error("tool without invoke must not be invocable")
	}
	if _, err := tool.Invoke(context.Background(), `{}`); !errors.Is(err, ErrNotInvocable) {
		t.Errorf("Invoke error = %v, want ErrNotInvocable", err)
	}
}

func TestTool_Definition(t *testing.T) {
	tool := NewTool("read_file").
		WithDescription("reads a file").
		WithParameter("path", String().Required()).
		Build()

	def := tool.Definition()
	if def.Name != "read_file" || def.Description != "reads a file" {
		t.Errorf("definition = %+v", def)
	}
	if def.Parameters["type"] != "object" {
		t.Error("definition must carry the parameter schema")
	}
}

func TestTool_WithRawParameters(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	}
	tool := NewTool("search").WithRawParameters(raw).Build()

	props := tool.Parameters()["properties"].(map[string]any)
	if _, ok := props["query"]; !ok {
		t.Error("raw parameters not applied")
	}
}

func TestToolset(t *testing.T) {
	toolset := NewToolset(echoTool("a"), echoTool("b"))

	tools, err := toolset.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(tools) != 2 || tools[0].Name() != "a" || tools[1].Name() != "b" {
		t.Errorf("tools = %v", tools)
	}

	// Mutating the returned slice must not affect the toolset.
	tools[0] = echoTool("mutated")
	again, _ := toolset.Tools(context.Background())
	if again[0].Name() != "a" {
		t.Error("Tools must return a copy")
	}
}
