package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"affynorm/internal/chipset"
)

// SyntheticOptions shapes a generated chipset
type SyntheticOptions struct {
	Probesets    int
	ProbesPerSet int
	Chips        int
	// Noise is the log-scale standard deviation added to every probe.
	Noise float64
	Seed  int64
	// WithMismatch attaches MM intensities at a fraction of PM.
	WithMismatch bool
}

// DefaultSyntheticOptions returns a small but non-trivial chipset shape
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Probesets:    40,
		ProbesPerSet: 8,
		Chips:        4,
		Noise:        0.05,
		Seed:         1,
	}
}

// ChipScale is the multiplicative brightness of generated chip j
func ChipScale(j int) float64 {
	return 1 + 0.5*float64(j)
}

// SyntheticLayout builds a square-ish layout with opts.Probesets probesets
// named set_000, set_001 and so on.
func SyntheticLayout(opts SyntheticOptions) *chipset.Layout {
	n := opts.Probesets * opts.ProbesPerSet
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols

	positions := make([]chipset.Position, n)
	for i := range positions {
		positions[i] = chipset.Position{X: i % cols, Y: i / cols}
	}
	sets := make([]chipset.Probeset, opts.Probesets)
	for s := range sets {
		pm := make([]int, opts.ProbesPerSet)
		for r := range pm {
			pm[r] = s*opts.ProbesPerSet + r
		}
		sets[s] = chipset.Probeset{Name: fmt.Sprintf("set_%03d", s), PM: pm}
	}
	return chipset.NewLayout(rows, cols, positions, sets)
}

// SyntheticChipset generates chips named chip_0, chip_1 and so on whose
// probes share a log-normal affinity and differ by ChipScale(j) and noise.
func SyntheticChipset(t testing.TB, opts SyntheticOptions) *chipset.Chipset {
	t.Helper()
	layout := SyntheticLayout(opts)
	rng := rand.New(rand.NewSource(opts.Seed))

	base := make([]float64, layout.NumProbes())
	for i := range base {
		base[i] = math.Exp(6 + 1.5*rng.NormFloat64())
	}

	cs := chipset.New(layout)
	for j := 0; j < opts.Chips; j++ {
		signal := make(chipset.SignalVector, len(base))
		for i, b := range base {
			signal[i] = 50 + b*ChipScale(j)*math.Exp(opts.Noise*rng.NormFloat64())
		}
		chip := chipset.NewChip(fmt.Sprintf("chip_%d", j), signal)
		chip.Origin = "synthetic"
		if opts.WithMismatch {
			chip.Mismatch = make(chipset.SignalVector, len(signal))
			for i, v := range signal {
				chip.Mismatch[i] = 40 + 0.2*v*rng.Float64()
			}
		}
		require.NoError(t, cs.Add(chip))
	}
	return cs
}
