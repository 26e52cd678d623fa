// Package otelkit adapts the teacher's opentracing span helpers
// (helpers.MaybeStartSpanFromContext, opentracingkit) to OpenTelemetry. The
// composer uses it to wrap every dispatched sub-fetch in a span named after
// its target subschema, so a deployment can see the fan-out shape of a
// single operation (SPEC_FULL.md §4.3).
package otelkit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/stitchgql/federate/composer")

// StartSpan starts a child span named after a dispatch target. Unlike the
// teacher's MockSpan fallback (needed because opentracing has no no-op
// tracer by default), otel's global tracer is already a safe no-op until a
// TracerProvider is registered, so there is no equivalent fallback to build.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError mirrors opentracingkit's LogError: mark the span as failed and
// attach the error, without ending it.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
