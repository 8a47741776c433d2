package summarize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affynorm/internal/chipset"
	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
)

func TestBiweight(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected float64
	}{
		{name: "single value", input: []float64{3}, expected: 3},
		{name: "two values", input: []float64{1, 3}, expected: 2},
		{name: "zero spread", input: []float64{1, 1, 1}, expected: 1},
		{name: "outlier rejected", input: []float64{1, 1, 1, 100}, expected: 1},
		{name: "symmetric", input: []float64{1, 2, 3}, expected: 2},
		{name: "nan ignored", input: []float64{math.NaN(), 4}, expected: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Biweight(tt.input), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(Biweight(nil)))
	assert.True(t, math.IsNaN(Biweight([]float64{math.NaN()})))
}

func TestBiweightDownweightsTail(t *testing.T) {
	x := []float64{10, 10.1, 9.9, 10.05, 9.95, 30}
	got := Biweight(x)
	assert.InDelta(t, 10, got, 0.05)

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	assert.Less(t, got, mean)
}

// additive builds z[i][j] = t + rows[i] + cols[j]
func additive(overall float64, rows, cols []float64) [][]float64 {
	z := make([][]float64, len(rows))
	for i, r := range rows {
		z[i] = make([]float64, len(cols))
		for j, c := range cols {
			z[i][j] = overall + r + c
		}
	}
	return z
}

var polishOpts = PolishOptions{MaxIterations: 10, Epsilon: 0.01}

func TestMedianPolishRecoversAdditiveModel(t *testing.T) {
	rows := []float64{-1, 0, 1}
	cols := []float64{-1, 0, 1, 2}
	z := additive(5, rows, cols)

	p := MedianPolish(z, polishOpts)
	assert.True(t, p.Converged)
	assert.Equal(t, 1, p.Iterations)

	fitted := p.Fitted()
	for j, c := range cols {
		assert.InDelta(t, 5+c, fitted[j], 1e-12)
	}
	for i, r := range rows {
		assert.InDelta(t, r, p.Row[i], 1e-12)
	}
	for i := range p.Residuals {
		for j := range p.Residuals[i] {
			assert.InDelta(t, 0, p.Residuals[i][j], 1e-12)
		}
	}

	// input untouched
	assert.Equal(t, additive(5, rows, cols), z)
}

func TestMedianPolishIsRobust(t *testing.T) {
	cols := []float64{-1, 0, 1, 2}
	z := additive(5, []float64{-1, 0, 1}, cols)
	z[1][3] += 10

	p := MedianPolish(z, polishOpts)
	fitted := p.Fitted()
	for j, c := range cols {
		assert.InDelta(t, 5+c, fitted[j], 1e-12)
	}
	assert.InDelta(t, 10, p.Residuals[1][3], 1e-12)
}

func TestMedianPolishMissingCells(t *testing.T) {
	z := additive(5, []float64{-1, 0, 1}, []float64{-1, 0, 1, 2})
	z[0][0] = math.NaN()

	p := MedianPolish(z, polishOpts)
	for _, v := range p.Fitted() {
		assert.False(t, math.IsNaN(v))
	}
	assert.True(t, math.IsNaN(p.Residuals[0][0]))
}

func TestMedianPolishEmpty(t *testing.T) {
	p := MedianPolish(nil, polishOpts)
	assert.True(t, p.Converged)
	assert.Empty(t, p.Fitted())
}

var (
	probeEffects = []float64{-1, 0, 1}
	setLevels    = []float64{6, 9}
)

func testLayout() *chipset.Layout {
	positions := make([]chipset.Position, 6)
	for i := range positions {
		positions[i] = chipset.Position{X: i % 3, Y: i / 3}
	}
	return chipset.NewLayout(2, 3, positions, []chipset.Probeset{
		{Name: "set_a", PM: []int{0, 1, 2}},
		{Name: "set_b", PM: []int{3, 4, 5}},
	})
}

// testChipset builds chips whose log2 probe values are exactly
// level + probe effect + chip effect.
func testChipset(t *testing.T, layout chipset.ProbeLayout, chipEffects map[string]float64, order []string) *chipset.Chipset {
	t.Helper()
	cs := chipset.New(layout)
	for _, name := range order {
		signal := make(chipset.SignalVector, layout.NumProbes())
		for s, ps := range layout.Probesets() {
			for r, k := range ps.PM {
				signal[k] = math.Exp2(setLevels[s] + probeEffects[r] + chipEffects[name])
			}
		}
		require.NoError(t, cs.Add(chipset.NewChip(name, signal)))
	}
	return cs
}

func summaryConfig(method config.SummaryMethod) config.SummaryConfig {
	cfg := config.DefaultNormalization().Summary
	cfg.Method = method
	return cfg
}

func TestSummarizeBiweight(t *testing.T) {
	effects := map[string]float64{"c1": 0, "c2": 1, "c3": -2}
	order := []string{"c1", "c2", "c3"}
	cs := testChipset(t, testLayout(), effects, order)

	s := NewSummarizer(summaryConfig(config.SummaryBiweight), 2, nil)
	expr, model, err := s.Summarize(context.Background(), cs, nil)
	require.NoError(t, err)
	assert.Nil(t, model)
	assert.Equal(t, []string{"set_a", "set_b"}, expr.Probesets)
	assert.Equal(t, order, expr.Chips)

	for i, level := range setLevels {
		for j, name := range order {
			assert.InDelta(t, level+effects[name], expr.Values[i][j], 1e-9)
		}
	}
}

func TestSummarizeMedianPolishFitsModel(t *testing.T) {
	effects := map[string]float64{"c1": 0, "c2": 1, "c3": -2, "c4": 3}
	order := []string{"c1", "c2", "c3", "c4"}
	layout := testLayout()
	cs := testChipset(t, layout, effects, order)

	s := NewSummarizer(summaryConfig(config.SummaryMedianPolish), 0, nil)
	expr, model, err := s.Summarize(context.Background(), cs, nil)
	require.NoError(t, err)
	require.NotNil(t, model)

	assert.Equal(t, chipset.Fingerprint(layout), model.Fingerprint)
	assert.Equal(t, order, model.Chips)
	require.Contains(t, model.Probesets, "set_a")
	assert.Equal(t, probeEffects, model.Probesets["set_a"].Probe)

	for i, level := range setLevels {
		for j, name := range order {
			assert.InDelta(t, level+effects[name], expr.Values[i][j], 1e-9)
		}
	}

	v, ok := expr.Value("set_b", "c4")
	require.True(t, ok)
	assert.InDelta(t, 12, v, 1e-9)
	_, ok = expr.Value("set_c", "c4")
	assert.False(t, ok)
}

func TestSummarizeReusesAffinityModel(t *testing.T) {
	layout := testLayout()
	training := map[string]float64{"c1": 0, "c2": 1, "c3": -2}
	cs := testChipset(t, layout, training, []string{"c1", "c2", "c3"})

	s := NewSummarizer(summaryConfig(config.SummaryMedianPolish), 2, nil)
	fitted, model, err := s.Summarize(context.Background(), cs, nil)
	require.NoError(t, err)

	t.Run("training chips reproduce fitted values", func(t *testing.T) {
		again, reused, err := s.Summarize(context.Background(), cs, model)
		require.NoError(t, err)
		assert.Same(t, model, reused)
		for i := range fitted.Values {
			for j := range fitted.Values[i] {
				assert.InDelta(t, fitted.Values[i][j], again.Values[i][j], 1e-9)
			}
		}
	})

	t.Run("new chips use the trained affinities", func(t *testing.T) {
		fresh := testChipset(t, layout, map[string]float64{"n1": 2.5}, []string{"n1"})
		expr, _, err := s.Summarize(context.Background(), fresh, model)
		require.NoError(t, err)
		for i, level := range setLevels {
			assert.InDelta(t, level+2.5, expr.Values[i][0], 1e-9)
		}
	})

	t.Run("layout mismatch", func(t *testing.T) {
		other := chipset.NewLayout(1, 6, make([]chipset.Position, 6), []chipset.Probeset{
			{Name: "set_a", PM: []int{0, 1, 2, 3, 4, 5}},
		})
		cs := chipset.New(other)
		require.NoError(t, cs.Add(chipset.NewChip("x", make(chipset.SignalVector, 6))))
		_, _, err := s.Summarize(context.Background(), cs, model)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLayout))
	})
}

func TestSummarizeLinearOutput(t *testing.T) {
	cs := testChipset(t, testLayout(), map[string]float64{"c1": 0}, []string{"c1"})
	cfg := summaryConfig(config.SummaryBiweight)
	cfg.Log2Output = false

	expr, _, err := NewSummarizer(cfg, 1, nil).Summarize(context.Background(), cs, nil)
	require.NoError(t, err)
	assert.False(t, expr.Log2)
	assert.InDelta(t, 64, expr.Values[0][0], 1e-9)
	assert.InDelta(t, 512, expr.Values[1][0], 1e-9)
}

func TestSummarizeRejectsNone(t *testing.T) {
	cs := testChipset(t, testLayout(), map[string]float64{"c1": 0}, []string{"c1"})
	_, _, err := NewSummarizer(summaryConfig(config.SummaryNone), 1, nil).Summarize(context.Background(), cs, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestSummarizeHonorsCancellation(t *testing.T) {
	cs := testChipset(t, testLayout(), map[string]float64{"c1": 0}, []string{"c1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewSummarizer(summaryConfig(config.SummaryBiweight), 1, nil).Summarize(ctx, cs, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyAffinity(t *testing.T) {
	fit := chipset.ProbesetAffinity{Overall: 8, Probe: []float64{0.5, -0.5, 0}}

	tests := []struct {
		name     string
		adjusted []float64
		expected float64
	}{
		{name: "odd count", adjusted: []float64{9, 7, 8.5}, expected: 8.5},
		{name: "even count", adjusted: []float64{9, 7, 8, 10}, expected: 8.5},
		{name: "skips NaN", adjusted: []float64{math.NaN(), 6, 7}, expected: 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]float64(nil), tt.adjusted...)
			assert.InDelta(t, tt.expected, ApplyAffinity(fit, tt.adjusted), 1e-12)
			for k := range before {
				if math.IsNaN(before[k]) {
					assert.True(t, math.IsNaN(tt.adjusted[k]))
					continue
				}
				assert.Equal(t, before[k], tt.adjusted[k])
			}
		})
	}
}

func TestSummarizeProbeset(t *testing.T) {
	z := additive(5, []float64{-1, 0, 1}, []float64{0, 2})

	got, fit, err := SummarizeProbeset(z, summaryConfig(config.SummaryBiweight), nil)
	require.NoError(t, err)
	assert.Nil(t, fit)
	assert.InDeltaSlice(t, []float64{5, 7}, got, 1e-9)

	got, fit, err = SummarizeProbeset(z, summaryConfig(config.SummaryMedianPolish), nil)
	require.NoError(t, err)
	require.NotNil(t, fit)
	assert.InDeltaSlice(t, []float64{5, 7}, got, 1e-12)

	fresh := additive(5, []float64{-1, 0, 1}, []float64{4})
	got, reused, err := SummarizeProbeset(fresh, summaryConfig(config.SummaryMedianPolish), fit)
	require.NoError(t, err)
	assert.Same(t, fit, reused)
	assert.InDeltaSlice(t, []float64{9}, got, 1e-12)

	_, _, err = SummarizeProbeset(z[:2], summaryConfig(config.SummaryMedianPolish), fit)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLayout))

	_, _, err = SummarizeProbeset([][]float64{{1, 2}, {1}}, summaryConfig(config.SummaryBiweight), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
