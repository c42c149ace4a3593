package metrics

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this module's spans in any configured OTel
// exporter.
const tracerName = "github.com/koyomi-batch/koyomi/internal/engine"

// Tracer wraps the OpenTelemetry tracer for the scheduler loop's
// per-tick and per-launch spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer bound to the global TracerProvider. Call
// SetupTracing first to install a real exporter; otherwise spans are
// dropped by the SDK no-op default.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// SetupTracing installs a batching TracerProvider that writes spans as
// newline-delimited JSON to w, and returns a shutdown func to flush and
// close it. enabled selects between the real provider and the SDK's
// no-op default, since most batch operators don't run a collector.
func SetupTracing(applicationName string, w io.Writer, enabled bool) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}

	resource, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewSchemaless(
		semconv.ServiceNameKey.String(applicationName),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// StartTick opens a span covering one scheduler loop tick.
func (t *Tracer) StartTick(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "scheduler.tick")
}

// StartLaunch opens a span covering one process launch.
func (t *Tracer) StartLaunch(ctx context.Context, processName string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "scheduler.launch", trace.WithAttributes(
		attribute.String("koyomi.process_name", processName),
	))
	return ctx, span
}
