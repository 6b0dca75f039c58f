// Package tracing carries an OpenTelemetry tracer in a context.Context so
// request spans can be produced without package-level globals.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
)

// Span attribute keys
const (
	AttrKeyHTTPMethod     = "http.method"
	AttrKeyHTTPURL        = "http.url"
	AttrKeyHTTPStatusCode = "http.status_code"
	AttrKeyRequestID      = "odata.request.id"
	AttrKeyDialect        = "odata.dialect"
	AttrKeyAborted        = "odata.aborted"
)

type ctxKey struct{}

// TracerFromCtx returns the tracer stored in ctx, or a no-op tracer.
func TracerFromCtx(ctx context.Context) trace.Tracer {
	if tracer, ok := ctx.Value(ctxKey{}).(trace.Tracer); ok {
		return tracer
	}
	return trace.NewNoopTracerProvider().Tracer("")
}

// SetTracer returns a context carrying tracer. A nil tracer stores a no-op one.
func SetTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("")
	}
	if existing, ok := ctx.Value(ctxKey{}).(trace.Tracer); ok && existing == tracer {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tracer)
}

// Start opens a span with the tracer found in ctx.
func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return TracerFromCtx(ctx).Start(ctx, spanName, opts...)
}

// SetSpanError records err on the span in ctx. Aborted operations are marked
// but keep an unset status.
func SetSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if apierrors.IsAborted(err) {
		span.SetAttributes(attribute.Bool(AttrKeyAborted, true))
		return
	}
	if code := apierrors.StatusCode(err); code > 0 {
		span.SetAttributes(attribute.Int(AttrKeyHTTPStatusCode, code))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
