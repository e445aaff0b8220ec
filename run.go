package safeagent

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Run tracks the halt state for one end-to-end execution of the agent loop.
// The approval interceptor is the only writer within a run; the step
// controller reads it before each reasoning step. A new run (or an explicit
// Reset) is the only way the state clears.
type Run struct {
	id string

	mu     sync.Mutex
	halted bool
	reason string
}

// NewRun creates a fresh run with a unique ID.
func NewRun() *Run {
	return &Run{id: uuid.NewString()}
}

// ID returns the run's unique identifier.
func (r *Run) ID() string { return r.id }

// Halt records that the run must stop at the next step boundary. The first
// reason wins; later calls within the same run are no-ops.
func (r *Run) Halt(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.halted {
		return
	}
	r.halted = true
	r.reason = reason
}

// Halted reports whether the run has been halted.
func (r *Run) Halted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halted
}

// Reason returns the halt reason, if any.
func (r *Run) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Reset clears the halt state for reuse at the start of a new run.
func (r *Run) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halted = false
	r.reason = ""
}

// ToolResult is the outcome of one tool call within a step.
type ToolResult struct {
	CallID string
	Tool   string
	Output string
	Err    error
}

// StepResult tells the runtime what to do after a batch of tool results.
// A zero StepResult means "continue, no final output yet".
type StepResult struct {
	IsFinal     bool
	FinalOutput string
}

// StepBehavior is consulted after each batch of tool results, before the
// next reasoning step is generated.
type StepBehavior func(ctx context.Context, run *Run, results []ToolResult) (StepResult, error)

// runContextKey is a private type for context keys to avoid collisions.
type runContextKey struct{}

// WithRun attaches the run to the context so wrapped tools can reach the
// halt state of the run they execute in.
func WithRun(ctx context.Context, run *Run) context.Context {
	return context.WithValue(ctx, runContextKey{}, run)
}

// RunFromContext retrieves the run from the context.
func RunFromContext(ctx context.Context) (*Run, bool) {
	run, ok := ctx.Value(runContextKey{}).(*Run)
	return run, ok
}
