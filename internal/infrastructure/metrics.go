package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// EngineMetrics holds the instruments recorded by the normalization pipeline
// and the HTTP transport.
type EngineMetrics struct {
	ChipsProcessed   metric.Int64Counter
	StepDuration     metric.Float64Histogram
	StepErrors       metric.Int64Counter
	TrainingFraction metric.Float64Histogram
	FitRMSD          metric.Float64Histogram

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewEngineMetrics registers the engine instruments on meter
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	chips, err := meter.Int64Counter(
		"affynorm_chips_processed_total",
		metric.WithDescription("Chips that completed a pipeline step"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"affynorm_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepErrors, err := meter.Int64Counter(
		"affynorm_step_errors_total",
		metric.WithDescription("Pipeline steps that failed"),
	)
	if err != nil {
		return nil, err
	}

	trainingFraction, err := meter.Float64Histogram(
		"affynorm_pairwise_training_fraction",
		metric.WithDescription("Fraction of usable probes kept for pairwise fitting"),
	)
	if err != nil {
		return nil, err
	}

	rmsd, err := meter.Float64Histogram(
		"affynorm_pairwise_rmsd",
		metric.WithDescription("RMSD of pairwise fit residuals in log2 units"),
	)
	if err != nil {
		return nil, err
	}

	httpRequests, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		ChipsProcessed:      chips,
		StepDuration:        stepDuration,
		StepErrors:          stepErrors,
		TrainingFraction:    trainingFraction,
		FitRMSD:             rmsd,
		HTTPRequestsTotal:   httpRequests,
		HTTPRequestDuration: httpDuration,
	}, nil
}

// NoopEngineMetrics returns instruments that discard every measurement
func NoopEngineMetrics() *EngineMetrics {
	m, _ := NewEngineMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordStep records one pipeline step outcome
func (m *EngineMetrics) RecordStep(ctx context.Context, step string, chips int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("step", step))
	m.StepDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.StepErrors.Add(ctx, 1, attrs)
		return
	}
	m.ChipsProcessed.Add(ctx, int64(chips), attrs)
}

// RecordFit records the diagnostics of one pairwise fit
func (m *EngineMetrics) RecordFit(ctx context.Context, mode string, trainingFraction, rmsd float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.TrainingFraction.Record(ctx, trainingFraction, attrs)
	m.FitRMSD.Record(ctx, rmsd, attrs)
}

// RecordHTTPRequest records one served request
func (m *EngineMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
