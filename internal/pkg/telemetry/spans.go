package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/samirrijal/skyhop"

// Span attribute keys used across the reservation services.
const (
	AttrSegmentID  = attribute.Key("skyhop.segment_id")
	AttrTravelDate = attribute.Key("skyhop.travel_date")
	AttrBookingID  = attribute.Key("skyhop.booking_id")
	AttrSeats      = attribute.Key("skyhop.seats")
	AttrOverlap    = attribute.Key("skyhop.overlap_size")
	AttrRefundTier = attribute.Key("skyhop.refund_tier")
)

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
