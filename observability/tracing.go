package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/trigger"

// Tracer provides OpenTelemetry tracing for delivery attempts.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new trigger tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a new span for a delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, queue, eventID, triggerName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "trigger.delivery",
		trace.WithAttributes(
			attribute.String("trigger.queue", queue),
			attribute.String("trigger.event_id", eventID),
			attribute.String("trigger.name", triggerName),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, latencyMs int, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("trigger.latency_ms", latencyMs),
	)
	if errMsg != "" {
		span.SetAttributes(attribute.String("trigger.error", errMsg))
	}
	span.End()
}
