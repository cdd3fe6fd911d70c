// Package otel provides span helpers for tracing engine invocations,
// provider calls and GC sweeps. Exporter setup is left to the embedding
// process; without one these are no-ops.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "runforge"

// StartRunSpan starts a span covering one run lifecycle operation.
func StartRunSpan(ctx context.Context, op, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run."+op,
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
	)
}

// StartEngineSpan starts a span for a container engine invocation.
func StartEngineSpan(ctx context.Context, engine, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "engine."+op,
		trace.WithAttributes(
			attribute.String("engine.name", engine),
		),
	)
}

// StartProviderSpan starts a span for a source-control provider call.
func StartProviderSpan(ctx context.Context, provider, op, repo string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provider."+op,
		trace.WithAttributes(
			attribute.String("provider.name", provider),
			attribute.String("provider.repo", repo),
		),
	)
}

// StartSweepSpan starts a span covering one GC sweep.
func StartSweepSpan(ctx context.Context, engine string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gc.sweep",
		trace.WithAttributes(
			attribute.String("engine.name", engine),
		),
	)
}
