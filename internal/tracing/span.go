package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartPhaseSpan starts a span around one agent lifecycle phase
// (bootstrap or perform).
func StartPhaseSpan(ctx context.Context, tracer trace.Tracer, agentName, phase string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "agent "+phase,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("sagent.agent", agentName),
		attribute.String("sagent.phase", phase),
	)
	return ctx, span
}

// StartCallSpan starts a client span for a single network exchange.
func StartCallSpan(ctx context.Context, tracer trace.Tracer, protocol, method, address string) (context.Context, trace.Span) {
	spanName := protocol + " call"
	if method != "" {
		spanName = protocol + " " + method
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("rpc.system", protocol))
	if address != "" {
		span.SetAttributes(attribute.String("sagent.address", address))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
