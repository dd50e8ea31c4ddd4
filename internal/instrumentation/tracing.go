package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name used for all spans.
const TracerName = "github.com/teemow/mailout"

// Span attribute keys.
const (
	SpanAttrTransport  = "mail.transport"
	SpanAttrMessageID  = "mail.message_id"
	SpanAttrRecipients = "mail.recipients"
	SpanAttrFallback   = "mail.fallback"
	SpanAttrSource     = "oauth.code_source"
)

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartSendSpan starts a client span for one send attempt through transport.
func StartSendSpan(ctx context.Context, transport string, fallback bool, recipients int) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "mail.send."+transport,
		trace.WithAttributes(
			attribute.String(SpanAttrTransport, transport),
			attribute.Bool(SpanAttrFallback, fallback),
			attribute.Int(SpanAttrRecipients, recipients),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context, or an
// empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
