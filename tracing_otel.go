package safeagent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/agentsafe/safeagent"

// OTelConfig holds configuration for OpenTelemetry tracing.
type OTelConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint as host:port.
	Endpoint string
	// URLPath overrides the default OTLP traces path.
	URLPath string
	// Headers are added to every export request (auth, tenancy).
	Headers map[string]string
	// ServiceName identifies the application in traces.
	ServiceName string
	// ServiceVersion tracks the application version.
	ServiceVersion string
	// Environment specifies the deployment environment.
	Environment string
	// Insecure disables TLS for the exporter.
	Insecure bool
}

// OTelTracer implements Tracer on top of the OpenTelemetry SDK, exporting
// spans over OTLP/HTTP.
type OTelTracer struct {
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
}

// NewOTelTracer creates a tracer that exports to the configured collector.
func NewOTelTracer(cfg OTelConfig) (*OTelTracer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("safeagent: OTel endpoint is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "safeagent-app"
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &OTelTracer{
		tracer:         tp.Tracer(tracerName),
		tracerProvider: tp,
	}, nil
}

// StartTrace starts a root span for a run.
func (t *OTelTracer) StartTrace(ctx context.Context, name string, opts ...TraceOption) (context.Context, func()) {
	cfg := TraceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	attrs := metadataAttributes(cfg.Metadata)
	if cfg.Input != nil {
		attrs = append(attrs, attribute.String("trace.input", stringifyAttr(cfg.Input)))
	}
	if len(cfg.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("trace.tags", cfg.Tags))
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// StartSpan starts a child span for an individual operation.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, func()) {
	cfg := SpanConfig{Type: SpanTypeSpan}
	for _, opt := range opts {
		opt(&cfg)
	}

	attrs := metadataAttributes(cfg.Metadata)
	attrs = append(attrs, attribute.String("span.type", string(cfg.Type)))
	if cfg.Input != nil {
		attrs = append(attrs, attribute.String("span.input", stringifyAttr(cfg.Input)))
	}

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// LogEvent records an event on the current span.
func (t *OTelTracer) LogEvent(ctx context.Context, name string, attributes map[string]any) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	span.AddEvent(name, trace.WithAttributes(metadataAttributes(attributes)...))
	return nil
}

// Flush forces export of all pending spans.
func (t *OTelTracer) Flush(ctx context.Context) error {
	return t.tracerProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the tracer provider.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.tracerProvider.Shutdown(ctx)
}

func metadataAttributes(metadata map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for key, value := range metadata {
		switch v := value.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		default:
			attrs = append(attrs, attribute.String(key, stringifyAttr(v)))
		}
	}
	return attrs
}

func stringifyAttr(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
