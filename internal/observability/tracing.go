package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "storefinder"

// Tracer provides OpenTelemetry spans for store operations.
// It uses the global provider, which is a no-op unless one is installed.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// StartStoreSpan starts a span for an operation on a single store.
func (t *Tracer) StartStoreSpan(ctx context.Context, op, storeID, ownerID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("store.id", storeID)}
	if ownerID != "" {
		attrs = append(attrs, attribute.String("store.owner_id", ownerID))
	}
	return t.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
}

// StartNearbySpan starts a span for a proximity scan.
func (t *Tracer) StartNearbySpan(ctx context.Context, lat, lon, radiusMiles float64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "store.nearby",
		trace.WithAttributes(
			attribute.Float64("geo.latitude", lat),
			attribute.Float64("geo.longitude", lon),
			attribute.Float64("geo.radius_miles", radiusMiles),
		),
	)
}

// StartOutboxSpan starts a span for one outbox delivery attempt.
func (t *Tracer) StartOutboxSpan(ctx context.Context, entryID, actionType string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "outbox.deliver",
		trace.WithAttributes(
			attribute.String("outbox.entry_id", entryID),
			attribute.String("outbox.action_type", actionType),
			attribute.Int("outbox.attempt", attempt),
		),
	)
}

// End finishes span, marking it as errored when err is non-nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
