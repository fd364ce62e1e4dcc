package goIdentity

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "goIdentity"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := e.tracer
	if tracer == nil {
		tracer = defaultTracer()
	}
	return tracer.Start(ctx, "goIdentity."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it. Only the error text is
// recorded; identity errors never carry secrets.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func kindAttr(kind Kind) attribute.KeyValue {
	return attribute.String("identity.kind", kind.String())
}
