package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"affynorm/internal/chipset"
	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/numeric"
)

// AffinityModel is the per-probeset median polish fit that can be reused on
// chips outside the training set.
type AffinityModel = chipset.AffinityModel

// Expression is a probeset by chip matrix of summarized values
type Expression struct {
	Chips     []string
	Probesets []string
	// Values[i][j] is probeset i on chip j.
	Values [][]float64
	Log2   bool
}

// Value returns the expression of probeset on chip
func (e *Expression) Value(probeset, chip string) (float64, bool) {
	i := indexOf(e.Probesets, probeset)
	j := indexOf(e.Chips, chip)
	if i < 0 || j < 0 {
		return 0, false
	}
	return e.Values[i][j], true
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Summarizer collapses the probes of each probeset into one value per chip
type Summarizer struct {
	cfg     config.SummaryConfig
	workers int
	logger  *slog.Logger
}

// NewSummarizer creates a summarizer. workers <= 0 uses GOMAXPROCS.
func NewSummarizer(cfg config.SummaryConfig, workers int, logger *slog.Logger) *Summarizer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		cfg:     cfg,
		workers: workers,
		logger:  logger.With(slog.String("component", "summarize")),
	}
}

// Summarize computes the expression matrix of cs. With median polish and a
// non-nil model, the model's probe affinities are reused and the model is
// returned unchanged; otherwise a new model is fitted over cs. Biweight
// returns a nil model.
func (s *Summarizer) Summarize(ctx context.Context, cs *chipset.Chipset, model *AffinityModel) (*Expression, *AffinityModel, error) {
	layout := cs.Layout()
	sets := layout.Probesets()
	chips := cs.Chips()

	expr := &Expression{
		Chips:     cs.Names(),
		Probesets: make([]string, len(sets)),
		Values:    make([][]float64, len(sets)),
		Log2:      s.cfg.Log2Output,
	}
	for i, ps := range sets {
		expr.Probesets[i] = ps.Name
		expr.Values[i] = make([]float64, len(chips))
	}

	// log2 probe values per chip, computed once
	logs := make([][]float64, len(chips))
	for j, c := range chips {
		logs[j] = make([]float64, len(c.Signal))
		for k, v := range c.Signal {
			logs[j][k] = numeric.Log2(v)
		}
	}

	var out *AffinityModel
	var err error
	switch s.cfg.Method {
	case config.SummaryBiweight:
		err = s.biweight(ctx, sets, logs, expr)
	case config.SummaryMedianPolish:
		if model != nil {
			err = s.reuse(ctx, layout, sets, logs, expr, model)
			out = model
		} else {
			out, err = s.polish(ctx, layout, sets, logs, expr)
		}
	default:
		return nil, nil, apperrors.NewConfigError(fmt.Sprintf("summary method %q cannot produce expression values", s.cfg.Method), nil)
	}
	if err != nil {
		return nil, nil, err
	}

	if !s.cfg.Log2Output {
		for i := range expr.Values {
			for j, v := range expr.Values[i] {
				expr.Values[i][j] = math.Exp2(v)
			}
		}
	}
	return expr, out, nil
}

func (s *Summarizer) biweight(ctx context.Context, sets []chipset.Probeset, logs [][]float64, expr *Expression) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for j := range logs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf := make([]float64, 0, 32)
			for i, ps := range sets {
				buf = buf[:0]
				for _, k := range ps.PM {
					buf = append(buf, logs[j][k])
				}
				expr.Values[i][j] = Biweight(buf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "biweight summary complete",
		slog.Int("chips", len(logs)),
		slog.Int("probesets", len(sets)))
	return nil
}

func (s *Summarizer) polish(ctx context.Context, layout chipset.ProbeLayout, sets []chipset.Probeset, logs [][]float64, expr *Expression) (*AffinityModel, error) {
	opts := PolishOptions{MaxIterations: s.cfg.MaxIterations, Epsilon: s.cfg.Epsilon}
	fits := make([]chipset.ProbesetAffinity, len(sets))
	unconverged := make([]bool, len(sets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range sets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			z := make([][]float64, len(sets[i].PM))
			for r, k := range sets[i].PM {
				z[r] = make([]float64, len(logs))
				for j := range logs {
					z[r][j] = logs[j][k]
				}
			}
			p := MedianPolish(z, opts)
			fits[i] = chipset.ProbesetAffinity{Overall: p.Overall, Probe: p.Row, Chip: p.Col}
			unconverged[i] = !p.Converged
			copy(expr.Values[i], p.Fitted())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	model := &AffinityModel{
		Fingerprint: chipset.Fingerprint(layout),
		Chips:       append([]string(nil), expr.Chips...),
		Probesets:   make(map[string]chipset.ProbesetAffinity, len(sets)),
	}
	slow := 0
	for i, ps := range sets {
		model.Probesets[ps.Name] = fits[i]
		if unconverged[i] {
			slow++
		}
	}
	s.logger.InfoContext(ctx, "affinity model fitted",
		slog.Int("chips", len(logs)),
		slog.Int("probesets", len(sets)),
		slog.Int("unconverged", slow))
	return model, nil
}

func (s *Summarizer) reuse(ctx context.Context, layout chipset.ProbeLayout, sets []chipset.Probeset, logs [][]float64, expr *Expression, model *AffinityModel) error {
	if model.Fingerprint != chipset.Fingerprint(layout) {
		return apperrors.NewLayoutError("affinity model was trained on a different probe layout")
	}

	missing := 0
	buf := make([]float64, 0, 32)
	for i, ps := range sets {
		if err := ctx.Err(); err != nil {
			return err
		}
		fit, ok := model.Probesets[ps.Name]
		if !ok {
			missing++
			for j := range logs {
				expr.Values[i][j] = math.NaN()
			}
			continue
		}
		if len(fit.Probe) != len(ps.PM) {
			return apperrors.NewLayoutError(fmt.Sprintf("probeset %s has %d probes, model has %d", ps.Name, len(ps.PM), len(fit.Probe))).
				WithContext("probeset", ps.Name)
		}
		for j := range logs {
			buf = buf[:0]
			for r, k := range ps.PM {
				buf = append(buf, logs[j][k]-fit.Probe[r])
			}
			expr.Values[i][j] = ApplyAffinity(fit, buf)
		}
	}
	if missing > 0 {
		s.logger.WarnContext(ctx, "probesets absent from affinity model", slog.Int("count", missing))
	}
	return nil
}

// ApplyAffinity returns the expression of one chip given its log2 probe
// values with the probe affinities already subtracted: the fitted overall
// level plus the median remaining chip effect. adjusted is left unchanged.
func ApplyAffinity(fit chipset.ProbesetAffinity, adjusted []float64) float64 {
	effects := make([]float64, len(adjusted))
	for k, v := range adjusted {
		effects[k] = v - fit.Overall
	}
	return fit.Overall + numeric.Median(effects)
}

// SummarizeProbeset summarizes one probeset given its log2 probe values,
// values[probe][chip]. Biweight summarizes each chip on its own. Median
// polish reuses fit when it is non-nil and otherwise returns a new fit.
func SummarizeProbeset(values [][]float64, cfg config.SummaryConfig, fit *chipset.ProbesetAffinity) ([]float64, *chipset.ProbesetAffinity, error) {
	nc := 0
	if len(values) > 0 {
		nc = len(values[0])
	}
	for r := range values {
		if len(values[r]) != nc {
			return nil, nil, apperrors.NewValidationError(fmt.Sprintf("probe %d has %d chips, expected %d", r, len(values[r]), nc))
		}
	}
	out := make([]float64, nc)

	switch cfg.Method {
	case config.SummaryBiweight:
		col := make([]float64, len(values))
		for j := 0; j < nc; j++ {
			for r := range values {
				col[r] = values[r][j]
			}
			out[j] = Biweight(col)
		}
		return out, nil, nil

	case config.SummaryMedianPolish:
		if fit == nil {
			p := MedianPolish(values, PolishOptions{MaxIterations: cfg.MaxIterations, Epsilon: cfg.Epsilon})
			return p.Fitted(), &chipset.ProbesetAffinity{Overall: p.Overall, Probe: p.Row, Chip: p.Col}, nil
		}
		if len(fit.Probe) != len(values) {
			return nil, nil, apperrors.NewLayoutError(fmt.Sprintf("probeset has %d probes, model has %d", len(values), len(fit.Probe)))
		}
		adjusted := make([]float64, len(values))
		for j := 0; j < nc; j++ {
			for r := range values {
				adjusted[r] = values[r][j] - fit.Probe[r]
			}
			out[j] = ApplyAffinity(*fit, adjusted)
		}
		return out, fit, nil
	}
	return nil, nil, apperrors.NewConfigError(fmt.Sprintf("summary method %q cannot produce expression values", cfg.Method), nil)
}
