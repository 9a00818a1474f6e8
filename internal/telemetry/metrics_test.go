// ABOUTME: Tests for dispatch and request metrics
// ABOUTME: Reads instruments back through a manual metric reader

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/2389/lcu-gateway/internal/events"
	"github.com/2389/lcu-gateway/internal/lcu"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter(ScopeName))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_ObservesDispatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ev := events.Event{URI: "/lol-lobby/v2/lobby", Type: events.Update}

	var observer events.Observer = m
	observer.EventDispatched(t.Context(), ev, 2)
	observer.EventDispatched(t.Context(), ev, 0)
	observer.HandlerFailed(t.Context(), ev, errors.New("boom"))

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["lcu.events.dispatched"]))
	assert.Equal(t, int64(1), sumOf(t, data["lcu.handler.failures"]))
}

func TestMetrics_RecordRequest(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordRequest(t.Context(), "GET", 15*time.Millisecond, nil)
	m.RecordRequest(t.Context(), "PUT", 5*time.Millisecond, &lcu.RequestError{Kind: lcu.KindRejected, Status: 404})

	data := collect(t, reader)
	hist, ok := data["lcu.request.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, int64(1), sumOf(t, data["lcu.request.errors"]))
}
