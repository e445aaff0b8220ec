package safeagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentsafe/safeagent/internal/parallel"
	"github.com/agentsafe/safeagent/internal/retry"
	"github.com/agentsafe/safeagent/middleware"
	"github.com/agentsafe/safeagent/providers"
)

// Type aliases for internal package types.
type (
	RetryConfig    = retry.Config
	ParallelConfig = parallel.Config
	Middleware     = middleware.Middleware
)

// Function re-exports for convenience.
var (
	DefaultRetryConfig    = retry.Default
	DefaultParallelConfig = parallel.Default
)

const (
	defaultEventBuffer   = 10
	defaultMaxIterations = 5
)

// ErrMissingProvider is returned when a runner is built without a provider.
var ErrMissingProvider = errors.New("safeagent: Provider is required")

// ErrMaxIterations is returned when a run exhausts its iteration budget
// without producing a final output.
var ErrMaxIterations = errors.New("safeagent: max iterations reached without completion")

// RunnerConfig holds runner configuration.
type RunnerConfig struct {
	Agent                 *SafeAgent
	Provider              providers.Provider
	Model                 string
	SystemPrompt          string
	MaxIterations         int
	Temperature           float32
	Retry                 *RetryConfig
	Timeout               *TimeoutConfig
	ParallelToolExecution *ParallelConfig
	Logging               *LoggingConfig
	EventBuffer           int
	Tracer                Tracer
}

// Runner drives the reasoning/tool-call loop for a SafeAgent against an LLM
// provider. It owns the runtime concerns around the gate: completion calls
// with retry and timeouts, tool fan-out, the step-boundary halt check, and
// event/middleware/trace plumbing.
type Runner struct {
	agent          *SafeAgent
	provider       providers.Provider
	model          string
	systemPrompt   string
	maxIterations  int
	temperature    float32
	retryConfig    RetryConfig
	timeoutConfig  TimeoutConfig
	parallelConfig ParallelConfig
	logger         *slog.Logger
	middlewares    []Middleware
	eventBuffer    int
	tracer         Tracer
}

// NewRunner creates a runner with the given configuration.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Agent == nil {
		return nil, ErrMissingAgent
	}
	if cfg.Provider == nil {
		return nil, ErrMissingProvider
	}

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}

	retryConfig := DefaultRetryConfig()
	if cfg.Retry != nil {
		retryConfig = *cfg.Retry
	}

	timeoutConfig := DefaultTimeoutConfig()
	if cfg.Timeout != nil {
		timeoutConfig = *cfg.Timeout
	}

	parallelConfig := DefaultParallelConfig()
	if cfg.ParallelToolExecution != nil {
		parallelConfig = *cfg.ParallelToolExecution
	}
	if parallelConfig.MaxConcurrent <= 0 {
		parallelConfig.MaxConcurrent = 1
	}

	loggingConfig := DefaultLoggingConfig()
	if cfg.Logging != nil {
		loggingConfig = *cfg.Logging
	}

	eventBuffer := cfg.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = &NoOpTracer{}
	}

	return &Runner{
		agent:          cfg.Agent,
		provider:       cfg.Provider,
		model:          cfg.Model,
		systemPrompt:   cfg.SystemPrompt,
		maxIterations:  cfg.MaxIterations,
		temperature:    cfg.Temperature,
		retryConfig:    retryConfig,
		timeoutConfig:  timeoutConfig,
		parallelConfig: parallelConfig,
		logger:         resolveLogger(loggingConfig),
		eventBuffer:    eventBuffer,
		tracer:         tracer,
	}, nil
}

// Use registers middleware for run execution hooks.
func (r *Runner) Use(m Middleware) {
	if m == nil {
		return
	}
	r.middlewares = append(r.middlewares, m)
}

// Run executes one end-to-end run with streaming events. Each call begins a
// fresh run on the agent, so halt state never leaks between runs.
func (r *Runner) Run(ctx context.Context, userMessage string) <-chan Event {
	events := make(chan Event, r.eventBuffer)
	startTime := time.Now()

	go func() {
		defer close(events)

		run := r.agent.BeginRun()
		ctx := WithRun(ctx, run)

		publish := func(e Event) {
			r.observeApproval(ctx, e)
			if e.RunID == "" {
				e.RunID = run.ID()
			}
			events <- e
		}
		ctx = WithEventPublisher(ctx, publish)

		traceCtx, endTrace := r.tracer.StartTrace(ctx, "safeagent.run",
			WithTraceInput(userMessage),
			WithTraceMetadata(map[string]any{"run_id": run.ID(), "model": r.model}),
		)
		defer endTrace()
		ctx = traceCtx

		if r.timeoutConfig.RunExecution > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeoutConfig.RunExecution)
			defer cancel()
		}

		ctx = r.applyRunStart(ctx, userMessage)
		publish(RunStart(userMessage))

		output, iterations, runErr := r.runLoop(ctx, run, userMessage, publish)
		r.applyRunComplete(ctx, output, runErr)

		if runErr != nil {
			publish(Error(runErr))
		}
		publish(FinalOutput(output))
		publish(RunComplete(output, iterations, time.Since(startTime).Milliseconds()))
	}()

	return events
}

// runLoop orchestrates the multi-step conversation. Tools are refetched from
// the agent at each step boundary so remembered approvals take effect on the
// next fetch, matching the classify-at-retrieval contract.
func (r *Runner) runLoop(ctx context.Context, run *Run, userMessage string, publish EventPublisher) (string, int, error) {
	history := []providers.Message{
		{Role: providers.RoleUser, Content: userMessage},
	}

	step := r.agent.StepBehavior()
	iterations := 0

	for i := 0; i < r.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", iterations, fmt.Errorf("run aborted: %w", err)
		}

		tools, err := r.agent.GetAllTools(ctx)
		if err != nil {
			return "", iterations, err
		}

		r.logger.Debug("run iteration", "iteration", i, "max", r.maxIterations, "tools", len(tools))

		resp, err := r.complete(ctx, history, tools)
		if err != nil {
			return "", iterations, err
		}
		iterations = i + 1

		calls := ensureCallIDs(resp.ToolCalls)
		history = append(history, providers.Message{
			Role:      providers.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
		})

		if len(calls) == 0 {
			r.logger.Info("run completed", "iterations", iterations, "output_length", len(resp.Content))
			return resp.Content, iterations, nil
		}

		results, messages := r.executeToolCalls(ctx, tools, calls)
		history = append(history, messages...)

		stepResult, err := step(ctx, run, results)
		if err != nil {
			return "", iterations, fmt.Errorf("step behavior: %w", err)
		}
		if stepResult.IsFinal {
			if run.Halted() {
				publish(RunHalted(run.Reason()))
			}
			return stepResult.FinalOutput, iterations, nil
		}
	}

	return "", iterations, ErrMaxIterations
}

// complete issues one provider completion with retry and timeout.
func (r *Runner) complete(ctx context.Context, history []providers.Message, tools []Tool) (*providers.CompletionResponse, error) {
	defs := make([]providers.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, tool.Definition())
	}

	req := providers.CompletionRequest{
		Model:             r.model,
		SystemPrompt:      r.systemPrompt,
		Messages:          history,
		Tools:             defs,
		Temperature:       r.temperature,
		ToolChoice:        "auto",
		ParallelToolCalls: true,
	}

	callCtx := r.applyLLMCall(ctx, req)
	if r.timeoutConfig.LLMCall > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.timeoutConfig.LLMCall)
		defer cancel()
	}

	spanCtx, endSpan := r.tracer.StartSpan(callCtx, "llm.complete",
		WithSpanType(SpanTypeGeneration),
		WithSpanMetadata(map[string]any{"model": r.model, "messages": len(history)}),
	)
	defer endSpan()

	resp, err := retry.Do(spanCtx, r.retryConfig, func() (*providers.CompletionResponse, error) {
		return r.provider.Complete(spanCtx, req)
	})
	r.applyLLMResponse(spanCtx, resp, err)
	if err != nil {
		r.logger.Error("completion failed", "model", r.model, "error", err)
		return nil, fmt.Errorf("provider completion: %w", err)
	}
	return resp, nil
}

// executeToolCalls runs a batch of tool calls, sequentially or with bounded
// fan-out, and returns both the step results and the conversation messages.
// Message order follows the model's call order regardless of fan-out.
func (r *Runner) executeToolCalls(ctx context.Context, tools []Tool, calls []providers.ToolCall) ([]ToolResult, []providers.Message) {
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}

	results := make([]ToolResult, len(calls))
	if r.parallelConfig.Enabled && len(calls) > 1 {
		parallel.ForEach(len(calls), r.parallelConfig.MaxConcurrent, func(i int) {
			results[i] = r.executeToolCall(ctx, byName, calls[i])
		})
	} else {
		for i, call := range calls {
			results[i] = r.executeToolCall(ctx, byName, call)
		}
	}

	messages := make([]providers.Message, 0, len(results))
	for _, result := range results {
		content := result.Output
		if result.Err != nil {
			content = fmt.Sprintf("Error executing tool: %v", result.Err)
		}
		messages = append(messages, providers.Message{
			Role:       providers.RoleTool,
			Content:    content,
			ToolCallID: result.CallID,
			Name:       result.Tool,
		})
	}
	return results, messages
}

func (r *Runner) executeToolCall(ctx context.Context, byName map[string]Tool, call providers.ToolCall) ToolResult {
	tool, ok := byName[call.Name]
	if !ok {
		r.logger.Warn("tool not found", "tool", call.Name)
		err := fmt.Errorf("tool %q not found", call.Name)
		emitEvent(ctx, Error(err))
		return ToolResult{CallID: call.ID, Tool: call.Name, Err: err}
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		r.logger.Error("failed to marshal tool arguments", "tool", call.Name, "error", err)
		return ToolResult{CallID: call.ID, Tool: call.Name, Err: fmt.Errorf("marshal arguments: %w", err)}
	}

	emitEvent(ctx, ActionDetected(call.Name, call.ID))

	toolCtx := r.applyToolStart(ctx, call.Name, string(payload))
	if r.timeoutConfig.ToolExecution > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(toolCtx, r.timeoutConfig.ToolExecution)
		defer cancel()
	}

	spanCtx, endSpan := r.tracer.StartSpan(toolCtx, "tool."+call.Name,
		WithSpanType(SpanTypeTool),
		WithSpanInput(string(payload)),
	)
	output, invokeErr := tool.Invoke(spanCtx, string(payload))
	endSpan()

	r.applyToolComplete(toolCtx, call.Name, output, invokeErr)

	if invokeErr != nil {
		r.logger.Error("tool execution failed", "tool", call.Name, "error", invokeErr)
		emitEvent(ctx, Error(invokeErr))
	} else {
		r.logger.Info("tool executed", "tool", call.Name)
		emitEvent(ctx, ActionResult(call.Name, call.ID, output))
	}

	return ToolResult{CallID: call.ID, Tool: call.Name, Output: output, Err: invokeErr}
}

// observeApproval forwards approval outcomes to middleware. The interceptor
// publishes events without knowing about middleware; the runner translates.
func (r *Runner) observeApproval(ctx context.Context, e Event) {
	switch e.Type {
	case EventTypeApprovalGranted:
		r.applyApprovalResolved(ctx, eventString(e, "tool"), true, "")
	case EventTypeApprovalDenied:
		r.applyApprovalResolved(ctx, eventString(e, "tool"), false, eventString(e, "reason"))
	}
}

func eventString(e Event, key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Middleware application methods.
func (r *Runner) applyRunStart(ctx context.Context, input string) context.Context {
	for _, m := range r.middlewares {
		ctx = m.OnRunStart(ctx, input)
	}
	return ctx
}

func (r *Runner) applyRunComplete(ctx context.Context, output string, err error) {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		r.middlewares[i].OnRunComplete(ctx, output, err)
	}
}

func (r *Runner) applyLLMCall(ctx context.Context, req any) context.Context {
	for _, m := range r.middlewares {
		ctx = m.OnLLMCall(ctx, req)
	}
	return ctx
}

func (r *Runner) applyLLMResponse(ctx context.Context, resp any, err error) {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		r.middlewares[i].OnLLMResponse(ctx, resp, err)
	}
}

func (r *Runner) applyToolStart(ctx context.Context, tool, payload string) context.Context {
	for _, m := range r.middlewares {
		ctx = m.OnToolStart(ctx, tool, payload)
	}
	return ctx
}

func (r *Runner) applyToolComplete(ctx context.Context, tool, output string, err error) {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		r.middlewares[i].OnToolComplete(ctx, tool, output, err)
	}
}

func (r *Runner) applyApprovalResolved(ctx context.Context, tool string, approved bool, reason string) {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		r.middlewares[i].OnApprovalResolved(ctx, tool, approved, reason)
	}
}

// ensureCallIDs assigns IDs to tool calls that arrived without one.
func ensureCallIDs(calls []providers.ToolCall) []providers.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
	return calls
}
