// ABOUTME: Metric instruments and span helpers for dispatch and control-plane requests
// ABOUTME: Metrics implements the dispatcher's Observer interface

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/lcu"
)

// Attribute keys shared by spans and metrics.
var (
	AttrURI       = attribute.Key("lcu.event.uri")
	AttrEventType = attribute.Key("lcu.event.type")
	AttrMethod    = attribute.Key("lcu.request.method")
	AttrPath      = attribute.Key("lcu.request.path")
	AttrErrorKind = attribute.Key("lcu.request.error_kind")
)

// Metrics holds the gateway's instruments.
type Metrics struct {
	EventsDispatched metric.Int64Counter
	HandlerFailures  metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	RequestErrors    metric.Int64Counter
}

// NewMetrics creates every instrument from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.EventsDispatched, err = meter.Int64Counter("lcu.events.dispatched",
		metric.WithDescription("Events delivered to the dispatcher"),
	)
	if err != nil {
		return nil, err
	}

	m.HandlerFailures, err = meter.Int64Counter("lcu.handler.failures",
		metric.WithDescription("Handler invocations that returned an error or panicked"),
	)
	if err != nil {
		return nil, err
	}

	m.RequestDuration, err = meter.Float64Histogram("lcu.request.duration",
		metric.WithDescription("Control plane request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.RequestErrors, err = meter.Int64Counter("lcu.request.errors",
		metric.WithDescription("Control plane requests that failed"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// EventDispatched counts one event.
func (m *Metrics) EventDispatched(ctx context.Context, ev events.Event, handlers int) {
	m.EventsDispatched.Add(ctx, 1, metric.WithAttributes(
		AttrURI.String(ev.URI),
		AttrEventType.String(string(ev.Type)),
		attribute.Bool("matched", handlers > 0),
	))
}

// HandlerFailed counts one failed handler.
func (m *Metrics) HandlerFailed(ctx context.Context, ev events.Event, _ error) {
	m.HandlerFailures.Add(ctx, 1, metric.WithAttributes(AttrURI.String(ev.URI)))
}

// RecordRequest records the outcome of one control plane request.
func (m *Metrics) RecordRequest(ctx context.Context, method string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(AttrMethod.String(method))
	m.RequestDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.RequestErrors.Add(ctx, 1, metric.WithAttributes(
			AttrMethod.String(method),
			AttrErrorKind.String(lcu.KindOf(err).String()),
		))
	}
}

// StartClientSpan starts a span for an outbound control plane call.
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
