package otel

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitializeTracer exports spans over OTLP when OTEL_EXPORTER_OTLP_ENDPOINT
// is set. The returned function flushes and stops the exporter.
func InitializeTracer(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		// Silently disable tracing
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// TraceContextFromContext renders the span in ctx as a traceparent value. It
// is empty when ctx carries no span.
func TraceContextFromContext(ctx context.Context) string {
	var tc propagation.TraceContext
	carrier := make(propagation.MapCarrier)
	tc.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

func ContextFromTraceContext(ctx context.Context, traceContext string) context.Context {
	if traceContext == "" {
		return ctx
	}

	var tc propagation.TraceContext
	carrier := make(propagation.MapCarrier)
	carrier.Set("traceparent", traceContext)
	return tc.Extract(ctx, carrier)
}
