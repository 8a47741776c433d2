package background

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"affynorm/internal/chipset"
	"affynorm/internal/density"
)

// sigmaScale converts the one-sided RMS deviation below the mode into the
// noise standard deviation.
var sigmaScale = math.Sqrt2 / 0.85

// millsCutoff is the smallest normal CDF value evaluated directly. Below it
// the pdf/cdf ratio is replaced by its asymptote.
const millsCutoff = 1e-300

// RMAParams are the fitted parameters of the normal+exponential model
type RMAParams struct {
	Mu     float64
	Sigma  float64
	Alpha  float64
	Offset float64
}

// RMAOptions configures the density-model correction
type RMAOptions struct {
	MinSignal float64
	Density   density.Options
}

// DefaultRMAOptions returns options with a zero floor
func DefaultRMAOptions() RMAOptions {
	return RMAOptions{Density: density.DefaultOptions()}
}

// FitRMA estimates the model parameters. dups comes from
// ProbeLayout.Duplicates and may be nil; probes that repeat an earlier
// physical cell are left out of the estimate. When mm is non-nil the noise
// location and spread come from the mismatch distribution and the signal
// rate from signal.
func FitRMA(signal, mm chipset.SignalVector, dups []int, opts RMAOptions) RMAParams {
	pm := positiveUnique(signal, dups)
	noise := pm
	if mm != nil {
		noise = positiveUnique(mm, dups)
	}
	if len(pm) == 0 || len(noise) == 0 {
		return RMAParams{}
	}

	mu := density.ModeWeighted(noise, nil, opts.Density)

	var ss float64
	var below int
	for _, v := range noise {
		if v < mu {
			d := v - mu
			ss += d * d
			below++
		}
	}
	var sigma float64
	if below > 1 {
		sigma = math.Sqrt(ss/float64(below-1)) * sigmaScale
	}

	exceed := make([]float64, 0, len(pm))
	for _, v := range pm {
		if v > mu {
			exceed = append(exceed, v-mu)
		}
	}
	var alpha float64
	if len(exceed) > 0 {
		if m := density.ModeWeighted(exceed, nil, opts.Density); m > 0 {
			alpha = 1 / m
		}
	}

	return RMAParams{
		Mu:     mu,
		Sigma:  sigma,
		Alpha:  alpha,
		Offset: mu + alpha*sigma*sigma,
	}
}

// Adjust maps one raw intensity through the fitted model
func (p RMAParams) Adjust(v, floor float64) float64 {
	a := v - p.Offset
	out := math.Max(a, 0)
	if p.Sigma > 0 {
		z := a / p.Sigma
		cdf := distuv.UnitNormal.CDF(z)
		var ratio float64
		if cdf < millsCutoff {
			ratio = -z
		} else {
			ratio = distuv.UnitNormal.Prob(z) / cdf
		}
		out += p.Sigma * ratio
	}
	return math.Max(out, floor)
}

// RMA returns the density-model corrected copy of signal
func RMA(signal, mm chipset.SignalVector, dups []int, opts RMAOptions) (chipset.SignalVector, RMAParams) {
	p := FitRMA(signal, mm, dups, opts)
	out := make(chipset.SignalVector, len(signal))
	for i, v := range signal {
		out[i] = p.Adjust(v, opts.MinSignal)
	}
	return out, p
}

func positiveUnique(v chipset.SignalVector, dups []int) []float64 {
	out := make([]float64, 0, len(v))
	for i, x := range v {
		if dups != nil && dups[i] >= 0 {
			continue
		}
		if x > 0 && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
