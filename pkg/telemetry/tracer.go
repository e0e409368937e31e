package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Tracer wraps the OpenTelemetry tracer for run and action spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig

	mu     sync.Mutex
	runCtx context.Context
}

// NewTracer creates a tracer with the given configuration. When
// tracing is disabled the returned tracer generates spans but never
// exports them.
func NewTracer(cfg TracingConfig, version string) (*Tracer, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ubuntu-setup"
	}

	if !cfg.Enabled {
		provider := sdktrace.NewTracerProvider()
		return &Tracer{
			provider: provider,
			tracer:   provider.Tracer(serviceName),
			config:   cfg,
		}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

// StartRunSpan starts a span covering a whole run. The returned context
// becomes the parent for action spans emitted through OnRecord.
func (t *Tracer) StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	spanCtx, span := t.tracer.Start(ctx, "run.execute",
		trace.WithAttributes(attribute.String("run.id", runID)),
	)

	t.mu.Lock()
	t.runCtx = spanCtx
	t.mu.Unlock()

	return spanCtx, span
}

// OnRecord emits one span per completed action, timed to the recorded
// execution. Implements the executor's observer.
func (t *Tracer) OnRecord(rec engine.ExecutionRecord) {
	t.mu.Lock()
	parent := t.runCtx
	t.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	_, span := t.tracer.Start(parent, "action.apply",
		trace.WithTimestamp(rec.StartedAt),
		trace.WithAttributes(
			attribute.String("resource.id", string(rec.ResourceID)),
			attribute.String("verb", string(rec.Verb)),
			attribute.String("outcome", string(rec.Outcome)),
			attribute.Int("attempts", rec.Attempts),
		),
	)
	if rec.Outcome == engine.OutcomeFailed {
		span.SetStatus(codes.Error, rec.ErrorDetail)
	}
	span.End(trace.WithTimestamp(rec.StartedAt.Add(rec.Duration)))
}

// RecordError records an error on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes pending spans and shuts the provider down.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
