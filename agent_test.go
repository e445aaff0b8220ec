package safeagent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "missing agent",
			config:  Config{ApprovalCallback: AutoApprove},
			wantErr: ErrMissingAgent,
		},
		{
			name:    "missing approval callback",
			config:  Config{Agent: NewToolset()},
			wantErr: ErrMissingApprovalCallback,
		},
		{
			name:   "valid",
			config: Config{Agent: NewToolset(), ApprovalCallback: AutoApprove},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("New: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ZeroValueHaltsOnRejection(t *testing.T) {
	agent := newTestAgent(t, Config{
		ApprovalCallback: func(ctx context.Context, toolName, args string) (Decision, error) {
			return Decision{Reason: "denied"}, nil
		},
	})

	wrapped := agent.wrapToolWithApproval(echoTool("shell"))
	if _, err := wrapped.Invoke(context.Background(), `{}`); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	run := agent.CurrentRun()
	if !run.Halted() {
		t.Fatal("a rejection under the zero-value config must halt the run")
	}
	if run.Reason() != "denied the shell tool" {
		t.Errorf("halt reason = %q, want %q", run.Reason(), "denied the shell tool")
	}
}

func TestGetAllTools_PreservesOrderAndWrapsSelectively(t *testing.T) {
	toolset := NewToolset(
		echoTool("list_directory"),
		echoTool("read_file"),
		echoTool("write_file"),
		echoTool("run_shell"),
	)

	agent := newTestAgent(t, Config{
		Agent:            toolset,
		SafeToolNames:    []string{"list_directory"},
		SafeToolPatterns: []string{"read_"},
	})

	tools, err := agent.GetAllTools(context.Background())
	if err != nil {
		t.Fatalf("GetAllTools: %v", err)
	}

	wantOrder := []string{"list_directory", "read_file", "write_file", "run_shell"}
	wantWrapped := []bool{false, false, true, true}
	if len(tools) != len(wantOrder) {
		t.Fatalf("got %d tools, want %d", len(tools), len(wantOrder))
	}
	for i, tool := range tools {
		if tool.Name() != wantOrder[i] {
			t.Errorf("tool[%d] = %q, want %q", i, tool.Name(), wantOrder[i])
		}
		if tool.approvalWrapped != wantWrapped[i] {
			t.Errorf("tool %q wrapped = %v, want %v", tool.Name(), tool.approvalWrapped, wantWrapped[i])
		}
	}
}

func TestGetAllTools_BypassNeverWraps(t *testing.T) {
	callbackInvoked := false
	toolset := NewToolset(echoTool("write_file"), echoTool("run_shell"))

	agent := newTestAgent(t, Config{
		Agent:         toolset,
		SkipApprovals: true,
		ApprovalCallback: func(ctx context.Context, toolName, args string) (Decision, error) {
			callbackInvoked = true
			return Decision{}, nil
		},
	})

	tools, err := agent.GetAllTools(context.Background())
	if err != nil {
		t.Fatalf("GetAllTools: %v", err)
	}
	for _, tool := range tools {
		if tool.approvalWrapped {
			t.Errorf("tool %q wrapped despite bypass", tool.Name())
		}
		if _, err := tool.Invoke(context.Background(), `{}`); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}
	if callbackInvoked {
		t.Error("callback must never run in bypass mode")
	}
}

func TestGetAllTools_NonInvocablePassesThrough(t *testing.T) {
	hosted := NewTool("hosted_search").WithDescription("no local body").Build()
	toolset := NewToolset(hosted, echoTool("write_file"))

	agent := newTestAgent(t, Config{Agent: toolset})

	tools, err := agent.GetAllTools(context.Background())
	if err != nil {
		t.Fatalf("GetAllTools: %v", err)
	}
	if tools[0].approvalWrapped {
		t.Error("non-invocable tool must pass through unwrapped")
	}
	if !tools[1].approvalWrapped {
		t.Error("invocable unsafe tool must be wrapped")
	}
}

func TestGetAllTools_PropagatesFetchError(t *testing.T) {
	agent := newTestAgent(t, Config{Agent: failingAgent{}})
	if _, err := agent.GetAllTools(context.Background()); err == nil {
		t.Error("expected fetch error to propagate")
	}
}

type failingAgent struct{}

func (failingAgent) Tools(ctx context.Context) ([]Tool, error) {
	return nil, errors.New("registry unavailable")
}

func (failingAgent) Step() StepBehavior { return nil }

func TestSafeAgent_InvalidInitialPatternIsSkipped(t *testing.T) {
	agent := newTestAgent(t, Config{
		SafeToolPatterns: []string{"read_[", "list_"},
	})

	_, patterns := agent.Policy().Len()
	if patterns != 1 {
		t.Errorf("expected only the valid pattern, got %d", patterns)
	}
	if !agent.Policy().IsSafe("list_sessions") {
		t.Error("valid pattern must still apply")
	}
}

func TestSafeAgent_PolicyMutators(t *testing.T) {
	agent := newTestAgent(t, Config{})

	agent.AddSafeTool("deploy")
	if !agent.Policy().IsSafe("deploy") {
		t.Error("AddSafeTool had no effect")
	}

	agent.AddSafeToolPattern("fetch_")
	if !agent.Policy().IsSafe("fetch_page") {
		t.Error("AddSafeToolPattern had no effect")
	}

	agent.AddSafeToolPattern("broken[")
	_, patterns := agent.Policy().Len()
	if patterns != 1 {
		t.Errorf("invalid pattern must be ignored, have %d", patterns)
	}

	if !agent.RemoveSafeTool("deploy") {
		t.Error("RemoveSafeTool reported false for present name")
	}
	if agent.RemoveSafeTool("deploy") {
		t.Error("RemoveSafeTool reported true for absent name")
	}

	agent.ClearSafeTools()
	names, patterns := agent.Policy().Len()
	if names != 0 || patterns != 0 {
		t.Errorf("ClearSafeTools left %d names, %d patterns", names, patterns)
	}
}

func TestSafeAgent_BeginRunClearsHaltState(t *testing.T) {
	agent := newTestAgent(t, Config{})
	agent.CurrentRun().Halt("stop")

	run := agent.BeginRun()
	if run.Halted() {
		t.Error("new run must start clean")
	}
	if agent.CurrentRun() != run {
		t.Error("BeginRun must swap the current run")
	}
}

func TestSafeAgent_DebugDiagnostics(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	agent := newTestAgent(t, Config{
		Agent:         NewToolset(echoTool("write_file")),
		DebugMode:     true,
		SafeToolNames: []string{"list_directory"},
		Logging:       &LoggingConfig{Logger: logger},
	})

	if _, err := agent.GetAllTools(context.Background()); err != nil {
		t.Fatalf("GetAllTools: %v", err)
	}
	agent.AddSafeTool("deploy")

	out := buf.String()
	for _, want := range []string{"safeagent initialized", "wrapped tool", "added tool to safe list"} {
		if !strings.Contains(out, want) {
			t.Errorf("debug output missing %q:\n%s", want, out)
		}
	}
}

func TestSafeAgent_NoDebugNoDiagnostics(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	agent := newTestAgent(t, Config{
		Agent:   NewToolset(echoTool("write_file")),
		Logging: &LoggingConfig{Logger: logger},
	})

	if _, err := agent.GetAllTools(context.Background()); err != nil {
		t.Fatalf("GetAllTools: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no diagnostics without debug mode, got:\n%s", buf.String())
	}
}
