package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"affynorm/internal/infrastructure"
)

// TracerName is the instrumentation scope of pipeline spans
const TracerName = "affynorm.pipeline"

// stepTracer pairs step spans with the engine metrics
type stepTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.EngineMetrics
}

func newStepTracer(tracer trace.Tracer, metrics *infrastructure.EngineMetrics) *stepTracer {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	if metrics == nil {
		metrics = infrastructure.NoopEngineMetrics()
	}
	return &stepTracer{tracer: tracer, metrics: metrics}
}

// traceRun opens the span covering a whole run
func (st *stepTracer) traceRun(ctx context.Context, chips int, method string) (context.Context, trace.Span) {
	return st.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("trace.id", infrastructure.GetTraceID(ctx)),
			attribute.Int("pipeline.chips", chips),
			attribute.String("pipeline.method", method),
		),
	)
}

// traceStep opens the span of one step
func (st *stepTracer) traceStep(ctx context.Context, step, method string) (context.Context, trace.Span) {
	return st.tracer.Start(ctx, fmt.Sprintf("pipeline.step.%s", step),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("step.id", step),
			attribute.String("step.method", method),
		),
	)
}

// endStep records the step outcome on its span and in the metrics
func (st *stepTracer) endStep(ctx context.Context, span trace.Span, step string, chips int, started time.Time, err error) {
	duration := time.Since(started)
	span.SetAttributes(
		attribute.Int("step.chips", chips),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.End()
	st.metrics.RecordStep(ctx, step, chips, duration, err)
}
