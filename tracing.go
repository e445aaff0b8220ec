package safeagent

import "context"

// Tracer abstracts the tracing backend used by the runner. Implementations:
// OTelTracer (OpenTelemetry OTLP export) and NoOpTracer.
type Tracer interface {
	// StartTrace creates a new trace for a run. The returned function ends
	// the trace.
	StartTrace(ctx context.Context, name string, opts ...TraceOption) (context.Context, func())

	// StartSpan creates a span within the current trace for an individual
	// operation such as a tool call or completion.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, func())

	// LogEvent records a point-in-time event within the current span.
	LogEvent(ctx context.Context, name string, attributes map[string]any) error

	// Flush ensures all pending traces are exported.
	Flush(ctx context.Context) error
}

// TraceOption configures trace creation.
type TraceOption func(*TraceConfig)

// SpanOption configures span creation.
type SpanOption func(*SpanConfig)

// TraceConfig holds configuration for a trace.
type TraceConfig struct {
	Input    any
	Tags     []string
	Metadata map[string]any
}

// SpanConfig holds configuration for a span.
type SpanConfig struct {
	Type     SpanType
	Input    any
	Metadata map[string]any
}

// SpanType classifies an observation.
type SpanType string

const (
	SpanTypeSpan       SpanType = "span"
	SpanTypeGeneration SpanType = "generation"
	SpanTypeTool       SpanType = "tool"
)

// WithTraceInput sets the initial input for the trace.
func WithTraceInput(input any) TraceOption {
	return func(c *TraceConfig) {
		c.Input = input
	}
}

// WithTags categorizes the trace.
func WithTags(tags ...string) TraceOption {
	return func(c *TraceConfig) {
		c.Tags = append(c.Tags, tags...)
	}
}

// WithTraceMetadata attaches key-value data to the trace.
func WithTraceMetadata(metadata map[string]any) TraceOption {
	return func(c *TraceConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithSpanType sets the span type.
func WithSpanType(spanType SpanType) SpanOption {
	return func(c *SpanConfig) {
		c.Type = spanType
	}
}

// WithSpanInput sets the input data for the span.
func WithSpanInput(input any) SpanOption {
	return func(c *SpanConfig) {
		c.Input = input
	}
}

// WithSpanMetadata attaches key-value data to the span.
func WithSpanMetadata(metadata map[string]any) SpanOption {
	return func(c *SpanConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// NoOpTracer is a tracer that does nothing (used when tracing is disabled).
type NoOpTracer struct{}

func (n *NoOpTracer) StartTrace(ctx context.Context, name string, opts ...TraceOption) (context.Context, func()) {
	return ctx, func() {}
}

func (n *NoOpTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, func()) {
	return ctx, func() {}
}

func (n *NoOpTracer) LogEvent(ctx context.Context, name string, attributes map[string]any) error {
	return nil
}

func (n *NoOpTracer) Flush(ctx context.Context) error {
	return nil
}
