package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/infrastructure"
	"affynorm/internal/shared/testutil"
	api "affynorm/pkg/contracts/api/v1"
)

func newEngineService(t *testing.T) *EngineService {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	s, err := NewEngineService(config.DefaultNormalization(), nil, nil, logger)
	require.NoError(t, err)
	return s
}

func floats(xs []api.Float) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func TestNewEngineServiceRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultNormalization()
	cfg.Pairwise.Mode = "spline"

	_, err := NewEngineService(cfg, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestPairwise(t *testing.T) {
	s := newEngineService(t)

	tests := []struct {
		name     string
		req      api.PairwiseRequest
		scale    float64
		line     string
		validate func(t *testing.T, resp *api.PairwiseResponse)
	}{
		{
			name: "global scale halves a doubled chip",
			req: api.PairwiseRequest{
				Sample:    "chip_b",
				Current:   []float64{20, 40, 80, 160, 320},
				Reference: []float64{10, 20, 40, 80, 160},
				Options:   &api.PairwiseOptions{Mode: "global-scale"},
			},
			scale: 0.5,
			line:  "GlobalScale:\tchip_b\t",
		},
		{
			name: "identical vectors keep neutral scales",
			req: api.PairwiseRequest{
				Current:   []float64{10, 20, 30, 40},
				Reference: []float64{10, 20, 30, 40},
			},
			scale: 1,
			line:  "GlobalScale:\tsample\t",
			validate: func(t *testing.T, resp *api.PairwiseResponse) {
				assert.True(t, resp.Diagnostics.Degenerate)
				assert.Equal(t, "curve", resp.Diagnostics.Mode)
			},
		},
		{
			name: "untilt renders a fit line record",
			req: api.PairwiseRequest{
				Sample:    "chip_c",
				Current:   []float64{10, 20, 30, 40},
				Reference: []float64{10, 20, 30, 40},
				Options:   &api.PairwiseOptions{Mode: "untilt"},
			},
			scale: 1,
			line:  "GlobalFitLine:\tchip_c\t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.Pairwise(context.Background(), tt.req)
			require.NoError(t, err)
			require.Len(t, resp.Scales, len(tt.req.Current))
			require.Len(t, resp.Normalized, len(tt.req.Current))

			for i, sc := range floats(resp.Scales) {
				assert.InDelta(t, tt.scale, sc, 1e-9)
				assert.InDelta(t, tt.req.Current[i]*tt.scale, float64(resp.Normalized[i]), 1e-6)
			}
			assert.Contains(t, resp.Diagnostics.Line, tt.line)
			assert.Equal(t, len(tt.req.Current), resp.Diagnostics.Total)
			if tt.validate != nil {
				tt.validate(t, resp)
			}
		})
	}
}

func TestPairwiseDoesNotModifyRequest(t *testing.T) {
	s := newEngineService(t)
	cur := []float64{20, 40, 80}
	_, err := s.Pairwise(context.Background(), api.PairwiseRequest{
		Current:   cur,
		Reference: []float64{10, 20, 40},
		Options:   &api.PairwiseOptions{Mode: "global-scale"},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 40, 80}, cur)
}

func TestPairwiseErrors(t *testing.T) {
	s := newEngineService(t)

	tests := []struct {
		name    string
		req     api.PairwiseRequest
		errType apperrors.ErrorType
	}{
		{
			name:    "length mismatch",
			req:     api.PairwiseRequest{Current: []float64{1, 2}, Reference: []float64{1}},
			errType: apperrors.ErrTypeValidation,
		},
		{
			name: "mask length mismatch",
			req: api.PairwiseRequest{
				Current:   []float64{1, 2},
				Reference: []float64{1, 2},
				Mask:      []bool{true},
			},
			errType: apperrors.ErrTypeValidation,
		},
		{
			name: "invalid override",
			req: api.PairwiseRequest{
				Current:   []float64{1, 2},
				Reference: []float64{1, 2},
				Options:   &api.PairwiseOptions{Mode: "spline"},
			},
			errType: apperrors.ErrTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Pairwise(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), err.Error())
		})
	}
}

func TestPairwiseOptionsOverrides(t *testing.T) {
	s := newEngineService(t)
	floor := 5.0
	exp := 0.0

	opts := s.pairwiseOptions(&api.PairwiseOptions{
		Mode:           "untilt",
		Floor:          &floor,
		WeightExponent: &exp,
		WindowFraction: 0.5,
		Condense:       true,
	})
	assert.Equal(t, "untilt", string(opts.Mode))
	assert.Equal(t, 5.0, opts.Floor)
	assert.Equal(t, 0.0, opts.WeightExponent)
	assert.Equal(t, 0.5, opts.WindowFraction)
	assert.True(t, opts.Condense)
	assert.Equal(t, config.DefaultPruneFloor, opts.PruneFloor)

	defaults := s.pairwiseOptions(nil)
	assert.Equal(t, "curve", string(defaults.Mode))
	assert.Equal(t, config.DefaultMinSignal, defaults.Floor)
}

func TestPairwiseRecordsSpanAndFitMetrics(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := infrastructure.NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	s, err := NewEngineService(config.DefaultNormalization(), tp.Tracer("test"), metrics, nil)
	require.NoError(t, err)

	_, err = s.Pairwise(context.Background(), api.PairwiseRequest{
		Current:   []float64{20, 40, 80, 160},
		Reference: []float64{10, 20, 40, 80},
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "engine.pairwise", spans[0].Name)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	assert.True(t, found["affynorm_pairwise_training_fraction"])
	assert.True(t, found["affynorm_pairwise_rmsd"])
}

func TestBiweight(t *testing.T) {
	s := newEngineService(t)

	resp, err := s.Biweight(context.Background(), api.BiweightRequest{Values: []float64{7, 7, 7, 7}})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, float64(resp.Value), 1e-12)
	assert.Equal(t, 4, resp.N)

	resp, err = s.Biweight(context.Background(), api.BiweightRequest{Values: []float64{5, 5.1, 4.9, 5, 50}})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, float64(resp.Value), 0.1)
}

func TestMedianPolish(t *testing.T) {
	s := newEngineService(t)

	// additive probe and chip effects around an overall level of 8
	probe := []float64{-1, 0, 1}
	chip := []float64{-0.5, 0.5}
	values := make([][]float64, len(probe))
	for i := range probe {
		values[i] = make([]float64, len(chip))
		for j := range chip {
			values[i][j] = 8 + probe[i] + chip[j]
		}
	}

	resp, err := s.MedianPolish(context.Background(), api.MedianPolishRequest{Values: values})
	require.NoError(t, err)
	require.Len(t, resp.Expression, 2)
	assert.InDelta(t, 7.5, float64(resp.Expression[0]), 1e-9)
	assert.InDelta(t, 8.5, float64(resp.Expression[1]), 1e-9)
	assert.Len(t, resp.Probe, 3)
	assert.Len(t, resp.Chip, 2)
}

func TestMedianPolishRaggedRows(t *testing.T) {
	s := newEngineService(t)

	_, err := s.MedianPolish(context.Background(), api.MedianPolishRequest{
		Values: [][]float64{{1, 2}, {3}},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestDensityMode(t *testing.T) {
	s := newEngineService(t)

	tests := []struct {
		name  string
		req   api.DensityModeRequest
		want  float64
		delta float64
		n     int
	}{
		{
			name: "constant sample",
			req:  api.DensityModeRequest{Values: []float64{3, 3, 3}},
			want: 3, delta: 0, n: 3,
		},
		{
			name: "non-finite values are ignored",
			req:  api.DensityModeRequest{Values: []float64{2, math.NaN(), 2, math.Inf(1)}},
			want: 2, delta: 0, n: 2,
		},
		{
			name: "cluster dominates",
			req: api.DensityModeRequest{
				Values:   []float64{1, 1.1, 0.9, 1.05, 0.95, 10},
				GridSize: 512,
			},
			want: 1, delta: 0.3, n: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.DensityMode(context.Background(), tt.req)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, float64(resp.Mode), tt.delta)
			assert.Equal(t, tt.n, resp.N)
		})
	}
}
