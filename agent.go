// Package safeagent layers a human-in-the-loop approval gate over an LLM
// agent runtime. Every tool the underlying agent exposes is classified
// against a mutable safety policy; unsafe tools are wrapped so an approval
// callback runs before the real tool body, and a rejection can halt the
// whole run at the next step boundary.
package safeagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Agent is the underlying agent definition the gate composes over. Tools
// returns the candidate tools in a stable order; Step returns the agent's
// original step-continuation behavior, or nil for the default of "continue".
type Agent interface {
	Tools(ctx context.Context) ([]Tool, error)
	Step() StepBehavior
}

// Toolset is a static Agent backed by a fixed tool list.
type Toolset struct {
	tools []Tool
	step  StepBehavior
}

// NewToolset creates an Agent definition from a list of tools.
func NewToolset(tools ...Tool) *Toolset {
	return &Toolset{tools: tools}
}

// WithStep sets the toolset's original step behavior.
func (ts *Toolset) WithStep(step StepBehavior) *Toolset {
	ts.step = step
	return ts
}

// Tools returns the toolset's tools in registration order.
func (ts *Toolset) Tools(ctx context.Context) ([]Tool, error) {
	out := make([]Tool, len(ts.tools))
	copy(out, ts.tools)
	return out, nil
}

// Step returns the toolset's original step behavior, which may be nil.
func (ts *Toolset) Step() StepBehavior { return ts.step }

// Common validation errors.
var (
	ErrMissingApprovalCallback = errors.New("safeagent: ApprovalCallback is required")
	ErrMissingAgent            = errors.New("safeagent: Agent is required")
)

// Config holds SafeAgent configuration.
type Config struct {
	// Agent is the underlying agent definition whose tools are gated.
	Agent Agent

	// ApprovalCallback decides each unsafe tool invocation. Mandatory;
	// use AutoApprove for non-interactive setups.
	ApprovalCallback ApprovalCallback

	// SafeToolNames is the initial exact-name allow-list.
	SafeToolNames []string

	// SafeToolPatterns is the initial pattern allow-list. Patterns match
	// against the start of the tool name. Invalid patterns are logged and
	// skipped, never fatal.
	SafeToolPatterns []string

	// DebugMode writes classification, wrap, and halt diagnostics to the
	// error stream.
	DebugMode bool

	// ContinueOnRejection keeps the run going after a rejected tool call.
	// By default a rejection halts the whole run at the next step boundary.
	ContinueOnRejection bool

	// SkipApprovals bypasses the gate entirely: every tool is treated as
	// safe and the callback is never consulted.
	SkipApprovals bool

	// Logging overrides logger resolution.
	Logging *LoggingConfig
}

// DefaultConfig returns the default configuration. Agent and ApprovalCallback
// must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks if the configuration is valid. A missing approval callback
// is fatal: silently bypassing approval would defeat the gate.
func (c Config) Validate() error {
	if c.Agent == nil {
		return ErrMissingAgent
	}
	if c.ApprovalCallback == nil {
		return ErrMissingApprovalCallback
	}
	return nil
}

// SafeAgent exposes the same tool surface as the underlying agent while
// transparently applying the safety policy and approval interceptor.
type SafeAgent struct {
	agent           Agent
	policy          *SafetyPolicy
	approve         ApprovalCallback
	haltOnRejection bool
	debug           bool
	logger          *slog.Logger

	mu  sync.Mutex
	run *Run
}

// New creates a SafeAgent over the given agent definition.
func New(cfg Config) (*SafeAgent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid safeagent config: %w", err)
	}

	loggingConfig := DefaultLoggingConfig()
	if cfg.Logging != nil {
		loggingConfig = *cfg.Logging
	}
	if cfg.DebugMode {
		loggingConfig.Level = slog.LevelDebug
	}
	logger := resolveLogger(loggingConfig)

	s := &SafeAgent{
		agent:           cfg.Agent,
		policy:          NewSafetyPolicy(cfg.SkipApprovals),
		approve:         cfg.ApprovalCallback,
		haltOnRejection: !cfg.ContinueOnRejection,
		debug:           cfg.DebugMode,
		logger:          logger,
		run:             NewRun(),
	}

	for _, name := range cfg.SafeToolNames {
		s.policy.AddName(name)
	}
	for _, expr := range cfg.SafeToolPatterns {
		// Best-effort: a bad pattern is reported, not fatal.
		if err := s.policy.AddPattern(expr); err != nil {
			s.debugf("skipping safety pattern", "pattern", expr, "error", err)
		}
	}

	names, patterns := s.policy.Len()
	s.debugf("safeagent initialized",
		"safe_tools", names,
		"safe_patterns", patterns,
		"halt_on_rejection", s.haltOnRejection,
		"skip_approvals", cfg.SkipApprovals,
	)

	return s, nil
}

// GetAllTools fetches the underlying agent's tools and wraps the unsafe ones
// with the approval interceptor. Order is preserved. Safe tools and
// already-wrapped tools pass through unchanged.
func (s *SafeAgent) GetAllTools(ctx context.Context) ([]Tool, error) {
	tools, err := s.agent.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch tools: %w", err)
	}

	out := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if s.IsToolSafe(tool) {
			s.debugf("tool is safe, not wrapping", "tool", tool.Name())
			out = append(out, tool)
			continue
		}
		out = append(out, s.wrapToolWithApproval(tool))
	}
	return out, nil
}

// IsToolSafe reports whether the tool bypasses approval under the current
// policy.
func (s *SafeAgent) IsToolSafe(tool Tool) bool {
	return s.policy.IsSafe(tool.Name())
}

// AddSafeTool adds a tool name to the allow-list.
func (s *SafeAgent) AddSafeTool(name string) {
	s.policy.AddName(name)
	s.debugf("added tool to safe list", "tool", name)
}

// AddSafeToolPattern adds a prefix pattern to the allow-list. Invalid
// patterns are reported in debug mode and otherwise ignored.
func (s *SafeAgent) AddSafeToolPattern(expr string) {
	if err := s.policy.AddPattern(expr); err != nil {
		s.debugf("rejected safety pattern", "pattern", expr, "error", err)
		return
	}
	s.debugf("added safety pattern", "pattern", expr)
}

// RemoveSafeTool removes a tool name from the allow-list, reporting whether
// removal occurred.
func (s *SafeAgent) RemoveSafeTool(name string) bool {
	removed := s.policy.RemoveName(name)
	if removed {
		s.debugf("removed tool from safe list", "tool", name)
	}
	return removed
}

// ClearSafeTools removes all names and patterns from the policy.
func (s *SafeAgent) ClearSafeTools() {
	s.policy.Clear()
	s.debugf("cleared safe tools and patterns")
}

// Policy exposes the safety policy for direct inspection.
func (s *SafeAgent) Policy() *SafetyPolicy { return s.policy }

// CurrentRun returns the run whose halt state the agent currently tracks.
func (s *SafeAgent) CurrentRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// BeginRun starts a new run, discarding any halt state from the previous one.
func (s *SafeAgent) BeginRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = NewRun()
	return s.run
}

// StepBehavior returns the halt-aware step hook: if the run has been halted
// it forces a final empty output, otherwise it defers to the underlying
// agent's original behavior (or "continue" when none is set).
func (s *SafeAgent) StepBehavior() StepBehavior {
	original := s.agent.Step()

	return func(ctx context.Context, run *Run, results []ToolResult) (StepResult, error) {
		if run.Halted() {
			s.debugf("halting run", "reason", run.Reason())
			return StepResult{IsFinal: true, FinalOutput: ""}, nil
		}
		if original != nil {
			return original(ctx, run, results)
		}
		return StepResult{}, nil
	}
}

func (s *SafeAgent) debugf(msg string, args ...any) {
	if !s.debug {
		return
	}
	s.logger.Debug(msg, args...)
}
