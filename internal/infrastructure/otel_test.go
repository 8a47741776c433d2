package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: "test",
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := NewEngineMetrics(providers.Meter)
	require.NoError(t, err)
	ctx := context.Background()
	metrics.RecordStep(ctx, "background", 3, 10*time.Millisecond, nil)
	metrics.RecordFit(ctx, "curve", 0.8, 0.12)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "affynorm_chips_processed_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabled(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    ServiceName,
		TraceExporter:  "none",
		MetricExporter: "none",
	}, nil)
	require.NoError(t, err)

	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestOTelUnsupportedExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{TraceExporter: "jaeger", MetricExporter: "none"}, nil)
	assert.Error(t, err)

	_, err = InitializeOTel(&OTelConfig{TraceExporter: "none", MetricExporter: "statsd"}, nil)
	assert.Error(t, err)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.RecordStep(context.Background(), "x", 1, time.Second, nil)
		m.RecordFit(context.Background(), "curve", 1, 0)
		m.RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Second)
	})
	assert.NotPanics(t, func() {
		NoopEngineMetrics().RecordStep(context.Background(), "x", 1, time.Second, nil)
	})
}

func TestRuntimeMetricsCollect(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{TraceExporter: "none", MetricExporter: "none"}, nil)
	require.NoError(t, err)

	rm, err := NewRuntimeMetrics(providers.Meter)
	require.NoError(t, err)
	stats := rm.Collect(context.Background())
	assert.Greater(t, stats.Goroutines, int64(0))
	assert.Greater(t, stats.HeapSys, int64(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, rm.Run(ctx, time.Millisecond))
	assert.Error(t, rm.Run(context.Background(), 0))
}
