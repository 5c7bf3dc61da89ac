package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/irfndi/dealer-trust-engine/internal/services"

// BusinessTracer starts spans around engine operations that hold state or
// wait on external acquisition.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a tracer bound to the global provider.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: otel.Tracer(tracerName)}
}

// NewBusinessTracerWithProvider creates a tracer bound to an explicit provider.
func NewBusinessTracerWithProvider(tp trace.TracerProvider) *BusinessTracer {
	return &BusinessTracer{tracer: tp.Tracer(tracerName)}
}

// TracePoolLookup starts a span for a geographic pool lookup.
func (bt *BusinessTracer) TracePoolLookup(ctx context.Context, geoKey string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "geo_pool.get", trace.WithAttributes(
		attribute.String("geo.key", geoKey),
	))
}

// TracePoolAcquisition starts a span for the expensive acquisition behind a miss.
func (bt *BusinessTracer) TracePoolAcquisition(ctx context.Context, city, state string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "geo_pool.acquire", trace.WithAttributes(
		attribute.String("geo.city", city),
		attribute.String("geo.state", state),
	))
}

// RecordPoolResult annotates a lookup span with its outcome.
func (bt *BusinessTracer) RecordPoolResult(span trace.Span, fromPool bool, queryCount int64, score float64) {
	span.SetAttributes(
		attribute.Bool("pool.from_pool", fromPool),
		attribute.Int64("pool.query_count", queryCount),
		attribute.Float64("pool.score", score),
	)
}

// TraceRecalibration starts a span for a feedback-loop batch.
func (bt *BusinessTracer) TraceRecalibration(ctx context.Context, tenantID string, records int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "feedback.recalibrate", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int("feedback.records", records),
	))
}

// RecordRecalibration annotates a recalibration span with its outcome.
func (bt *BusinessTracer) RecordRecalibration(span trace.Span, previous, next, mape float64) {
	span.SetAttributes(
		attribute.Float64("confidence.previous", previous),
		attribute.Float64("confidence.new", next),
		attribute.Float64("feedback.mape", mape),
	)
}

// RecordError marks span as failed.
func (bt *BusinessTracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
