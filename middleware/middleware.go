// Package middleware provides hooks into run execution for observability
// and instrumentation.
package middleware

import "context"

// Middleware receives callbacks around run, LLM, and tool boundaries.
// Approval outcomes are reported through the resolved hook so callers can
// audit gate decisions without owning the callback.
type Middleware interface {
	OnRunStart(ctx context.Context, input string) context.Context
	OnRunComplete(ctx context.Context, output string, err error)
	OnLLMCall(ctx context.Context, req any) context.Context
	OnLLMResponse(ctx context.Context, resp any, err error)
	OnToolStart(ctx context.Context, tool string, payload string) context.Context
	OnToolComplete(ctx context.Context, tool string, output string, err error)
	OnApprovalResolved(ctx context.Context, tool string, approved bool, reason string)
}

// Base provides no-op implementations for Middleware. Embed it in custom
// middleware to implement only the hooks you need.
type Base struct{}

func (Base) OnRunStart(ctx context.Context, _ string) context.Context { return ctx }
func (Base) OnRunComplete(context.Context, string, error)             {}
func (Base) OnLLMCall(ctx context.Context, _ any) context.Context     { return ctx }
func (Base) OnLLMResponse(context.Context, any, error)                {}
func (Base) OnToolStart(ctx context.Context, _ string, _ string) context.Context {
	return ctx
}
func (Base) OnToolComplete(context.Context, string, string, error)    {}
func (Base) OnApprovalResolved(context.Context, string, bool, string) {}
