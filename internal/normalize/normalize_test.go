package normalize

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name     string
		chips    [][]float64
		mask     []bool
		expected [][]float64
	}{
		{
			name:     "distinct values",
			chips:    [][]float64{{5, 2, 3}, {4, 1, 6}},
			expected: [][]float64{{5.5, 1.5, 3.5}, {3.5, 1.5, 5.5}},
		},
		{
			name:     "ties share the averaged reference",
			chips:    [][]float64{{2, 2, 3}, {1, 4, 6}},
			expected: [][]float64{{2.25, 2.25, 4.5}, {1.5, 3, 4.5}},
		},
		{
			name:     "masked probes untouched",
			chips:    [][]float64{{5, 2, 100, 3}, {4, 1, 7, 6}},
			mask:     []bool{false, false, true, false},
			expected: [][]float64{{5.5, 1.5, 100, 3.5}, {3.5, 1.5, 7, 5.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Quantile(tt.chips, tt.mask))
			for j := range tt.expected {
				assert.InDeltaSlice(t, tt.expected[j], tt.chips[j], 1e-12)
			}
		})
	}
}

func TestQuantileEqualDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	chips := make([][]float64, 4)
	for j := range chips {
		chips[j] = make([]float64, 200)
		for i := range chips[j] {
			chips[j][i] = math.Exp(float64(j) + rng.NormFloat64())
		}
	}
	require.NoError(t, Quantile(chips, nil))

	first := append([]float64(nil), chips[0]...)
	sort.Float64s(first)
	for _, c := range chips[1:] {
		s := append([]float64(nil), c...)
		sort.Float64s(s)
		assert.InDeltaSlice(t, first, s, 1e-9)
	}
}

func TestQuantileMissingValues(t *testing.T) {
	chips := [][]float64{{1, 2, 3, 4}, {10, math.NaN(), 30, 40}}
	require.NoError(t, Quantile(chips, nil))
	assert.True(t, math.IsNaN(chips[1][1]))
	assert.Less(t, chips[1][0], chips[1][2])
	assert.Less(t, chips[1][2], chips[1][3])
}

func TestQuantileErrors(t *testing.T) {
	err := Quantile([][]float64{{1, 2}, {1}}, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	err = Quantile([][]float64{{1, 2}}, []bool{true})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	assert.NoError(t, Quantile(nil, nil))
}

func TestScale(t *testing.T) {
	signal := []float64{1, 2, 3, 4}
	factor, err := Scale(signal, nil, 100, config.NormalizationMedian)
	require.NoError(t, err)
	assert.Equal(t, 40.0, factor)
	assert.Equal(t, []float64{40, 80, 120, 160}, signal)

	signal = make([]float64, 50)
	for i := range signal {
		signal[i] = float64(i + 1)
	}
	factor, err = Scale(signal, nil, 51, config.NormalizationMean)
	require.NoError(t, err)
	assert.Equal(t, 2.0, factor)
	assert.Equal(t, 100.0, signal[49])
}

func TestScaleIgnoresMaskedAndNonPositive(t *testing.T) {
	signal := []float64{0, -3, 2, 1000, 4}
	mask := []bool{false, false, false, true, false}
	factor, err := Scale(signal, mask, 6, config.NormalizationMedian)
	require.NoError(t, err)
	assert.Equal(t, 2.0, factor)
	assert.Equal(t, 2000.0, signal[3])
}

func TestScaleDegenerate(t *testing.T) {
	signal := []float64{0, 0}
	factor, err := Scale(signal, nil, 100, config.NormalizationMean)
	require.NoError(t, err)
	assert.Equal(t, 1.0, factor)
	assert.Equal(t, []float64{0, 0}, signal)
}

func TestScaleErrors(t *testing.T) {
	_, err := Scale([]float64{1}, []bool{true, false}, 1, config.NormalizationMean)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = Scale([]float64{1}, nil, 0, config.NormalizationMean)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	_, err = Scale([]float64{1}, nil, 1, config.NormalizationQuantile)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestTrimmedMean(t *testing.T) {
	assert.Equal(t, 2.0, TrimmedMean([]float64{3, 1, 2}, 0.5))
	assert.Equal(t, 2.5, TrimmedMean([]float64{4, 1, 3, 2}, 0))
}
