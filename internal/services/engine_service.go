package services

import (
	"context"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"affynorm/internal/config"
	"affynorm/internal/density"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/infrastructure"
	"affynorm/internal/iron"
	"affynorm/internal/pipeline"
	"affynorm/internal/summarize"
	api "affynorm/pkg/contracts/api/v1"
)

// EngineService exposes the single-call numeric kernels to the transport
// layer. Requests override the configured defaults field by field.
type EngineService struct {
	cfg     config.NormalizationConfig
	tracer  trace.Tracer
	metrics *infrastructure.EngineMetrics
	logger  *slog.Logger
}

// NewEngineService validates cfg and creates the service. nil tracer and
// metrics fall back to the global tracer and no-op instruments.
func NewEngineService(cfg config.NormalizationConfig, tracer trace.Tracer, metrics *infrastructure.EngineMetrics, logger *slog.Logger) (*EngineService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid normalization config", err)
	}
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.ServiceName + ".engine")
	}
	if metrics == nil {
		metrics = infrastructure.NoopEngineMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineService{
		cfg:     cfg,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger.With(slog.String("service", "engine")),
	}, nil
}

// Pairwise normalizes req.Current against req.Reference
func (s *EngineService) Pairwise(ctx context.Context, req api.PairwiseRequest) (*api.PairwiseResponse, error) {
	opts := s.pairwiseOptions(req.Options)
	ctx, span := s.tracer.Start(ctx, "engine.pairwise", trace.WithAttributes(
		attribute.String("pairwise.mode", string(opts.Mode)),
		attribute.Int("pairwise.probes", len(req.Current)),
	))
	defer span.End()

	res, err := iron.Normalize(req.Current, req.Reference, req.Mask, opts)
	if err != nil {
		return nil, s.fail(ctx, span, "pairwise normalization failed", err)
	}

	normalized := append([]float64(nil), req.Current...)
	if err := iron.Apply(normalized, res.Scales); err != nil {
		return nil, s.fail(ctx, span, "applying scale factors failed", err)
	}

	s.metrics.RecordFit(ctx, string(opts.Mode), res.TrainingFraction, res.RMSD)
	d := res.Diagnostics
	span.SetAttributes(
		attribute.Float64("pairwise.training_fraction", res.TrainingFraction),
		attribute.Bool("pairwise.degenerate", d.Degenerate),
	)

	sample := req.Sample
	if sample == "" {
		sample = "sample"
	}
	s.logger.DebugContext(ctx, "pairwise fit",
		slog.String("sample", sample),
		slog.Int("trained", d.Trained),
		slog.Float64("rmsd", res.RMSD),
		slog.String("prune_state", d.PruneState.String()),
	)

	return &api.PairwiseResponse{
		Scales:     api.Floats(res.Scales),
		Normalized: api.Floats(normalized),
		RMSD:       api.Float(res.RMSD),
		Diagnostics: api.PairwiseDiagnostics{
			Mode:             string(d.Mode),
			Scale:            api.Float(d.Scale),
			Log2Scale:        api.Float(d.Log2Scale),
			Slope:            api.Float(d.Slope),
			Intercept:        api.Float(d.Intercept),
			UntiltDegrees:    api.Float(d.UntiltDegrees),
			Trained:          d.Trained,
			UsableBoth:       d.UsableBoth,
			UsableCurrent:    d.UsableCurrent,
			Total:            d.Total,
			TrainingFraction: api.Float(d.TrainingFraction),
			PruneState:       d.PruneState.String(),
			PruneIterations:  d.PruneIterations,
			Degenerate:       d.Degenerate,
			Line:             d.Line(sample),
		},
	}, nil
}

// Biweight returns the Tukey biweight location of req.Values
func (s *EngineService) Biweight(ctx context.Context, req api.BiweightRequest) (*api.SummaryResponse, error) {
	_, span := s.tracer.Start(ctx, "engine.biweight", trace.WithAttributes(
		attribute.Int("summary.values", len(req.Values)),
	))
	defer span.End()

	return &api.SummaryResponse{
		Value: api.Float(summarize.Biweight(req.Values)),
		N:     countFinite(req.Values),
	}, nil
}

// MedianPolish fits one probeset given values[probe][chip]
func (s *EngineService) MedianPolish(ctx context.Context, req api.MedianPolishRequest) (*api.MedianPolishResponse, error) {
	ctx, span := s.tracer.Start(ctx, "engine.median_polish", trace.WithAttributes(
		attribute.Int("summary.probes", len(req.Values)),
	))
	defer span.End()

	cfg := s.cfg.Summary
	cfg.Method = config.SummaryMedianPolish
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.Epsilon > 0 {
		cfg.Epsilon = req.Epsilon
	}

	values, fit, err := summarize.SummarizeProbeset(req.Values, cfg, nil)
	if err != nil {
		return nil, s.fail(ctx, span, "median polish failed", err)
	}
	return &api.MedianPolishResponse{
		Expression: api.Floats(values),
		Overall:    api.Float(fit.Overall),
		Probe:      api.Floats(fit.Probe),
		Chip:       api.Floats(fit.Chip),
	}, nil
}

// DensityMode returns the mode of a kernel density estimate of req.Values
func (s *EngineService) DensityMode(ctx context.Context, req api.DensityModeRequest) (*api.DensityModeResponse, error) {
	_, span := s.tracer.Start(ctx, "engine.density_mode", trace.WithAttributes(
		attribute.Int("density.values", len(req.Values)),
	))
	defer span.End()

	opts := density.DefaultOptions()
	if req.GridSize > 0 {
		opts.GridSize = req.GridSize
	}
	if req.Adjust > 0 {
		opts.Adjust = req.Adjust
	}
	return &api.DensityModeResponse{
		Mode: api.Float(density.ModeWeighted(req.Values, req.Weights, opts)),
		N:    countFinite(req.Values),
	}, nil
}

func (s *EngineService) pairwiseOptions(o *api.PairwiseOptions) iron.Options {
	opts := pipeline.IronOptions(s.cfg)
	if o == nil {
		return opts
	}
	if o.Mode != "" {
		opts.Mode = iron.Mode(o.Mode)
	}
	if o.Floor != nil {
		opts.Floor = *o.Floor
	}
	if o.WeightExponent != nil {
		opts.WeightExponent = *o.WeightExponent
	}
	if o.WindowFraction > 0 {
		opts.WindowFraction = o.WindowFraction
	}
	if o.PruneFloor > 0 {
		opts.PruneFloor = o.PruneFloor
	}
	if o.Saturation > 0 {
		opts.Saturation = o.Saturation
	}
	opts.FloorToZero = opts.FloorToZero || o.FloorToZero
	opts.FitBothAxes = opts.FitBothAxes || o.FitBothAxes
	opts.Condense = opts.Condense || o.Condense
	return opts
}

func (s *EngineService) fail(ctx context.Context, span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
	return err
}

func countFinite(x []float64) int {
	n := 0
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}
