package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "practice-judge"

// Tracer wraps OpenTelemetry tracing for runs and provider calls.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSpan creates a new span and returns the updated context.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("judge.%s", name),
		trace.WithAttributes(attrs...),
	)
	return ctx, span
}

// SpanFromContext returns the current span from the context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// Common attribute keys for judge tracing.
var (
	AttrRunID     = attribute.Key("judge.run.id")
	AttrProblemID = attribute.Key("judge.problem.id")
	AttrLanguage  = attribute.Key("judge.language")
	AttrBackend   = attribute.Key("judge.backend")
	AttrCodeHash  = attribute.Key("judge.code_hash")
	AttrCaseIndex = attribute.Key("judge.case.index")
	AttrToken     = attribute.Key("judge.provider.token")
	AttrStatusID  = attribute.Key("judge.provider.status_id")
	AttrPassed    = attribute.Key("judge.passed")
)
