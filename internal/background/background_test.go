package background

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affynorm/internal/chipset"
	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
)

func gridLayout(rows, cols int) *chipset.Layout {
	positions := make([]chipset.Position, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			positions = append(positions, chipset.Position{X: x, Y: y})
		}
	}
	return chipset.NewLayout(rows, cols, positions, nil)
}

func noisySignal(seed int64, n int) chipset.SignalVector {
	rng := rand.New(rand.NewSource(seed))
	v := make(chipset.SignalVector, 0, 2*n)
	for i := 0; i < n; i++ {
		v = append(v, 100+10*rng.NormFloat64())
	}
	for i := 0; i < n; i++ {
		v = append(v, 100+10*rng.NormFloat64()+500*rng.ExpFloat64())
	}
	return v
}

func TestFitRMARecoversNoiseLocation(t *testing.T) {
	signal := noisySignal(7, 5000)
	p := FitRMA(signal, nil, nil, DefaultRMAOptions())

	assert.InDelta(t, 100, p.Mu, 15)
	assert.Greater(t, p.Sigma, 0.0)
	assert.Greater(t, p.Alpha, 0.0)
	assert.InDelta(t, p.Mu+p.Alpha*p.Sigma*p.Sigma, p.Offset, 1e-9)
}

func TestRMAOutput(t *testing.T) {
	signal := noisySignal(11, 2000)
	opts := DefaultRMAOptions()
	opts.MinSignal = 1

	out, p := RMA(signal, nil, nil, opts)
	require.Len(t, out, len(signal))
	for i, v := range out {
		assert.GreaterOrEqual(t, v, 1.0, "probe %d", i)
		assert.False(t, math.IsNaN(v))
	}

	// far above the offset the correction is a plain shift
	assert.InDelta(t, 20000-p.Offset, p.Adjust(20000, 0), 1e-6)
}

func TestRMAConstantInput(t *testing.T) {
	out, p := RMA(chipset.SignalVector{50, 50, 50, 50}, nil, nil, DefaultRMAOptions())
	assert.Equal(t, 50.0, p.Mu)
	assert.Equal(t, 0.0, p.Sigma)
	assert.Equal(t, 0.0, p.Alpha)
	assert.Equal(t, chipset.SignalVector{0, 0, 0, 0}, out)
}

func TestRMANoPositiveValues(t *testing.T) {
	out, p := RMA(chipset.SignalVector{0, -3, 0}, nil, nil, DefaultRMAOptions())
	assert.Equal(t, RMAParams{}, p)
	assert.Equal(t, chipset.SignalVector{0, 0, 0}, out)
}

func TestAdjustFarBelowOffset(t *testing.T) {
	p := RMAParams{Sigma: 1, Offset: 0}
	assert.InDelta(t, 100, p.Adjust(-100, 0), 1e-9)
	assert.False(t, math.IsInf(p.Adjust(-1e6, 0), 0))
}

func TestFitRMASkipsDuplicateCells(t *testing.T) {
	signal := noisySignal(3, 1000)
	base := FitRMA(signal, nil, nil, DefaultRMAOptions())

	withDups := append(signal.Clone(), 1e6, 1e6, 1e6)
	dups := make([]int, len(withDups))
	for i := range dups {
		dups[i] = -1
	}
	for i := len(signal); i < len(withDups); i++ {
		dups[i] = 0
	}
	assert.Equal(t, base, FitRMA(withDups, nil, dups, DefaultRMAOptions()))
}

func TestFitRMAUsesMismatchForNoise(t *testing.T) {
	pm := noisySignal(5, 2000)
	mm := make(chipset.SignalVector, len(pm))
	rng := rand.New(rand.NewSource(9))
	for i := range mm {
		mm[i] = 200 + 5*rng.NormFloat64()
	}

	p := FitRMA(pm, mm, nil, DefaultRMAOptions())
	assert.InDelta(t, 200, p.Mu, 10)
}

func TestZoneGrid(t *testing.T) {
	g := NewZoneGrid(100, 100, 16)
	assert.Equal(t, 4, g.ZonesX)
	assert.Equal(t, 4, g.ZonesY)
	assert.Equal(t, 16, g.Len())
	assert.Equal(t, 0, g.ZoneOf(0, 0))
	assert.Equal(t, 1, g.ZoneOf(30, 0))
	assert.Equal(t, 4, g.ZoneOf(0, 30))
	assert.Equal(t, 15, g.ZoneOf(99, 99))

	g = NewZoneGrid(10, 10, 6)
	assert.Equal(t, 2, g.ZonesX)
	assert.Equal(t, 3, g.ZonesY)
}

func TestEstimateZonesTinyZones(t *testing.T) {
	layout := gridLayout(2, 2)
	signal := chipset.SignalVector{10, 20, 30, 40}

	_, zones := EstimateZones(signal, nil, layout, ZoneOptions{Count: 4, Smooth: 100, LowFraction: 0.02})
	require.Len(t, zones, 4)
	for k, z := range zones {
		assert.Equal(t, 1, z.Points)
		assert.Equal(t, signal[k], z.Background)
		assert.Equal(t, 0.0, z.Noise, "fewer than two points has zero noise")
	}
}

func TestEstimateZonesRespectsMask(t *testing.T) {
	layout := gridLayout(2, 2)
	signal := chipset.SignalVector{1, 20, 30, 40}
	mask := []bool{true, false, false, false}

	_, zones := EstimateZones(signal, mask, layout, ZoneOptions{Count: 1, Smooth: 100, LowFraction: 0.5})
	require.Len(t, zones, 1)
	assert.Equal(t, 2, zones[0].Points)
	assert.InDelta(t, 25, zones[0].Background, 1e-12)
	assert.InDelta(t, math.Sqrt(50), zones[0].Noise, 1e-12)
}

func TestZonesFlatChip(t *testing.T) {
	layout := gridLayout(8, 8)
	signal := make(chipset.SignalVector, 64)
	for i := range signal {
		signal[i] = 100
	}

	out := Zones(signal, nil, layout, ZoneOptions{Count: 4, Smooth: 100, NoiseFraction: 0.5, LowFraction: 0.02})
	require.Len(t, out, 64)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestZonesFloorsAtNoise(t *testing.T) {
	layout := gridLayout(16, 16)
	rng := rand.New(rand.NewSource(1))
	signal := make(chipset.SignalVector, 256)
	for i := range signal {
		signal[i] = 200 + 20*rng.NormFloat64() + float64(i%16)
	}

	opts := ZoneOptions{Count: 16, Smooth: 100, NoiseFraction: 0.5, LowFraction: 0.25}
	_, zones := EstimateZones(signal, nil, layout, opts)
	out := Zones(signal, nil, layout, opts)

	minNoise := math.Inf(1)
	for _, z := range zones {
		minNoise = math.Min(minNoise, z.Noise)
	}
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.5*minNoise-1e-9)
	}
}

func TestCorrectorDispatch(t *testing.T) {
	layout := gridLayout(4, 4)
	ctx := context.Background()

	cfg := config.DefaultNormalization()
	cfg.Background = config.BackgroundNone
	chip := chipset.NewChip("a", make(chipset.SignalVector, 16))
	for i := range chip.Signal {
		chip.Signal[i] = float64(i + 1)
	}
	orig := chip.Signal.Clone()
	require.NoError(t, NewCorrector(layout, cfg, nil).Correct(ctx, chip))
	assert.Equal(t, orig, chip.Signal)

	cfg.Background = config.BackgroundRMAPMMM
	err := NewCorrector(layout, cfg, nil).Correct(ctx, chip)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	cfg.Background = config.BackgroundMAS5
	require.NoError(t, NewCorrector(layout, cfg, nil).Correct(ctx, chip))
	assert.Len(t, chip.Signal, 16)
	assert.NotEqual(t, orig, chip.Signal)

	cfg.Background = config.BackgroundRMA
	chip.Signal = orig.Clone()
	require.NoError(t, NewCorrector(layout, cfg, nil).Correct(ctx, chip))
	for _, v := range chip.Signal {
		assert.GreaterOrEqual(t, v, cfg.MinSignal)
	}
}
