package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"affynorm/internal/background"
	"affynorm/internal/chipset"
	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/infrastructure"
	"affynorm/internal/iron"
	"affynorm/internal/normalize"
	"affynorm/internal/summarize"
)

// ChipDiagnostics is the pairwise fit record of one chip
type ChipDiagnostics struct {
	Chip string `json:"chip"`
	iron.Diagnostics
	RMSD float64 `json:"rmsd"`
}

// Line renders the legacy diagnostics record of the chip
func (d ChipDiagnostics) Line() string {
	return d.Diagnostics.Line(d.Chip)
}

// Result is the outcome of one run
type Result struct {
	TraceID string
	// Reference names the pairwise reference chip, if any.
	Reference   string
	Diagnostics []ChipDiagnostics
	// Expression is nil when summarization is disabled.
	Expression *summarize.Expression
	Model      *summarize.AffinityModel
	Steps      []*StepState
}

// DiagnosticLines renders every pairwise record in chip order
func (r *Result) DiagnosticLines() []string {
	lines := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		lines[i] = d.Line()
	}
	return lines
}

// Engine runs background correction, normalization and summarization over a
// chipset. It holds only immutable configuration and may run several
// chipsets concurrently.
type Engine struct {
	cfg     config.NormalizationConfig
	workers int
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.EngineMetrics
}

// Option customizes an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records step and fit measurements
func WithMetrics(metrics *infrastructure.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithTracer overrides the global tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// New validates cfg and creates an engine that processes up to workers
// chips at once. workers <= 0 uses GOMAXPROCS.
func New(cfg config.NormalizationConfig, workers int, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid normalization config", err)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e := &Engine{cfg: cfg, workers: workers}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = infrastructure.WithComponent(e.logger, "pipeline")
	return e, nil
}

// IronOptions converts the pairwise settings of cfg
func IronOptions(cfg config.NormalizationConfig) iron.Options {
	return iron.Options{
		Mode:           iron.Mode(cfg.Pairwise.Mode),
		Floor:          cfg.MinSignal,
		FloorToZero:    cfg.FloorToZero,
		WeightExponent: cfg.Pairwise.WeightExponent,
		WindowFraction: cfg.Pairwise.WindowFraction,
		FitBothAxes:    cfg.Pairwise.FitBothAxes,
		Condense:       cfg.Pairwise.CondenseDuplicates,
		PruneFloor:     cfg.Pairwise.PruneFloor,
		Saturation:     cfg.Pairwise.Saturation,
	}
}

type stepFunc func(ctx context.Context, cs *chipset.Chipset, res *Result) (chips int, message string, err error)

// Run processes cs in place. Chip signals are overwritten by every step;
// a fitted affinity model is cached on cs for later runs.
func (e *Engine) Run(ctx context.Context, cs *chipset.Chipset) (*Result, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	st := newStepTracer(e.tracer, e.metrics)
	ctx, span := st.traceRun(ctx, cs.Len(), string(e.cfg.Method))
	defer span.End()

	res := &Result{TraceID: infrastructure.GetTraceID(ctx)}
	steps := []struct {
		id     string
		method string
		skip   string
		run    stepFunc
	}{
		{StepValidate, "", "", e.validate},
		{StepBackground, string(e.cfg.Background), skipIf(e.cfg.Background == config.BackgroundNone, "background correction disabled"), e.background},
		{StepNormalize, string(e.cfg.Method), skipIf(e.cfg.Method == config.NormalizationNone, "normalization disabled"), e.normalize},
		{StepSummarize, string(e.cfg.Summary.Method), skipIf(e.cfg.Summary.Method == config.SummaryNone, "summarization disabled"), e.summarize},
	}

	started := time.Now()
	for _, s := range steps {
		state := NewStepState(s.id)
		res.Steps = append(res.Steps, state)

		if s.skip != "" {
			state.Skip(s.skip)
			continue
		}
		if err := ctx.Err(); err != nil {
			state.Fail(err)
			return res, err
		}

		state.Start()
		sctx, sspan := st.traceStep(ctx, s.id, s.method)
		stepStart := time.Now()
		chips, msg, err := s.run(sctx, cs, res)
		st.endStep(sctx, sspan, s.id, chips, stepStart, err)
		if err != nil {
			state.Fail(err)
			infrastructure.RecordError(ctx, err)
			e.logger.ErrorContext(ctx, "pipeline step failed",
				slog.String("step", s.id),
				slog.String("error", err.Error()))
			return res, fmt.Errorf("%s step failed: %w", s.id, err)
		}
		state.Complete(chips, msg)
		e.logger.DebugContext(ctx, "pipeline step completed",
			slog.String("step", s.id),
			slog.Int("chips", chips),
			slog.Duration("duration", state.Duration()))
	}

	e.logger.InfoContext(ctx, "pipeline completed",
		slog.Int("chips", cs.Len()),
		slog.String("background", string(e.cfg.Background)),
		slog.String("method", string(e.cfg.Method)),
		slog.String("summary", string(e.cfg.Summary.Method)),
		slog.Duration("duration", time.Since(started)))
	return res, nil
}

func skipIf(cond bool, reason string) string {
	if cond {
		return reason
	}
	return ""
}

func (e *Engine) validate(ctx context.Context, cs *chipset.Chipset, _ *Result) (int, string, error) {
	if cs.Len() == 0 {
		return 0, "", apperrors.NewValidationError("chipset has no chips")
	}
	salvaged := 0
	for _, c := range cs.Chips() {
		if !c.Corrupt {
			continue
		}
		if !e.cfg.Salvage {
			return 0, "", apperrors.NewCorruptInputError(c.Name)
		}
		salvaged++
		e.logger.WarnContext(infrastructure.WithChip(ctx, c.Name), "processing corrupt chip in salvage mode")
	}
	return cs.Len(), fmt.Sprintf("%d salvaged", salvaged), nil
}

// forEachChip runs fn on every chip with at most e.workers in flight
func (e *Engine) forEachChip(ctx context.Context, chips []*chipset.Chip, fn func(ctx context.Context, j int, c *chipset.Chip) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for j, c := range chips {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(infrastructure.WithChip(ctx, c.Name), j, c)
		})
	}
	return g.Wait()
}

func (e *Engine) background(ctx context.Context, cs *chipset.Chipset, _ *Result) (int, string, error) {
	corrector := background.NewCorrector(cs.Layout(), e.cfg, e.logger)
	chips := cs.Chips()
	err := e.forEachChip(ctx, chips, func(ctx context.Context, _ int, c *chipset.Chip) error {
		if err := corrector.Correct(ctx, c); err != nil {
			return err
		}
		if n := c.MarkBelowFloor(e.cfg.MinSignal); n > 0 {
			e.logger.DebugContext(ctx, "probes below signal floor", slog.Int("count", n))
		}
		return nil
	})
	return len(chips), "", err
}

func (e *Engine) normalize(ctx context.Context, cs *chipset.Chipset, res *Result) (int, string, error) {
	layout := cs.Layout()
	chips := cs.Chips()

	switch e.cfg.Method {
	case config.NormalizationMean, config.NormalizationMedian:
		err := e.forEachChip(ctx, chips, func(ctx context.Context, _ int, c *chipset.Chip) error {
			factor, err := normalize.Scale(c.Signal, chipset.BuildMask(layout, c), e.cfg.MeanTarget, e.cfg.Method)
			if err != nil {
				return err
			}
			e.logger.DebugContext(ctx, "chip scaled", slog.Float64("factor", factor))
			return nil
		})
		return len(chips), "", err

	case config.NormalizationQuantile:
		signals := make([][]float64, len(chips))
		for j, c := range chips {
			signals[j] = c.Signal
		}
		return len(chips), "", normalize.Quantile(signals, chipset.BuildMask(layout, nil))

	case config.NormalizationPairwise:
		return e.pairwise(ctx, cs, res)
	}
	return 0, "", apperrors.NewConfigError(fmt.Sprintf("unknown normalization method %q", e.cfg.Method), nil)
}

func (e *Engine) pairwise(ctx context.Context, cs *chipset.Chipset, res *Result) (int, string, error) {
	layout := cs.Layout()
	chips := cs.Chips()

	ref, err := e.reference(cs)
	if err != nil {
		return 0, "", err
	}
	refChip := chips[ref]
	reference := refChip.Signal.Clone()
	refMask := chipset.BuildMask(layout, refChip)
	res.Reference = refChip.Name
	e.logger.InfoContext(ctx, "pairwise reference selected",
		slog.String("reference", refChip.Name),
		slog.Bool("configured", e.cfg.Pairwise.Reference != ""))

	opts := IronOptions(e.cfg)
	diags := make([]ChipDiagnostics, len(chips))
	err = e.forEachChip(ctx, chips, func(ctx context.Context, j int, c *chipset.Chip) error {
		mask := chipset.BuildMask(layout, c)
		for i, m := range refMask {
			mask[i] = mask[i] || m
		}
		fit, err := iron.Normalize(c.Signal, reference, mask, opts)
		if err != nil {
			return err
		}
		if err := iron.Apply(c.Signal, fit.Scales); err != nil {
			return err
		}
		diags[j] = ChipDiagnostics{Chip: c.Name, Diagnostics: fit.Diagnostics, RMSD: fit.RMSD}
		e.metrics.RecordFit(ctx, string(opts.Mode), fit.TrainingFraction, fit.RMSD)

		if e.cfg.Pairwise.Diagnostics {
			e.logger.InfoContext(ctx, diags[j].Line())
		}
		e.logger.DebugContext(ctx, "pairwise fit",
			slog.Float64("training_fraction", fit.TrainingFraction),
			slog.Float64("rmsd", fit.RMSD),
			slog.String("prune_state", fit.Diagnostics.PruneState.String()),
			slog.Int("prune_iterations", fit.Diagnostics.PruneIterations))
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	res.Diagnostics = diags
	return len(chips), "reference " + refChip.Name, nil
}

// reference resolves the configured reference chip, or picks the most
// typical chip when none is configured.
func (e *Engine) reference(cs *chipset.Chipset) (int, error) {
	names := cs.Names()
	if name := e.cfg.Pairwise.Reference; name != "" {
		for j, n := range names {
			if n == name {
				return j, nil
			}
		}
		return 0, apperrors.NewNotFoundError(fmt.Sprintf("reference chip %q", name))
	}

	chips := cs.Chips()
	signals := make([][]float64, len(chips))
	for j, c := range chips {
		signals[j] = c.Signal
	}
	return max(iron.ChooseReference(signals), 0), nil
}

func (e *Engine) summarize(ctx context.Context, cs *chipset.Chipset, res *Result) (int, string, error) {
	s := summarize.NewSummarizer(e.cfg.Summary, e.workers, e.logger)
	cached := cs.Affinity()

	expr, model, err := s.Summarize(ctx, cs, cached)
	if err != nil {
		return 0, "", err
	}
	msg := "biweight"
	if model != nil && model != cached {
		if err := cs.SetAffinity(model); err != nil {
			return 0, "", err
		}
		msg = "affinity model fitted"
	} else if model != nil {
		msg = "affinity model reused"
	}
	res.Expression = expr
	res.Model = model
	return cs.Len(), msg, nil
}
