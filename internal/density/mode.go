package density

import "math"

// Mode returns the location of the maximum of a kernel density estimate of x
// using DefaultOptions. An empty sample returns 0 and a sample without spread
// returns its constant value.
func Mode(x []float64) float64 {
	return ModeWeighted(x, nil, DefaultOptions())
}

// ModeWeighted is Mode with optional per-point weights and explicit options.
// Non-finite values and their weights are ignored.
func ModeWeighted(x, weights []float64, opts Options) float64 {
	xs, ws := finite(x, weights)
	if len(xs) == 0 {
		return 0
	}
	if constant(xs) {
		return xs[0]
	}
	return Estimate(xs, ws, opts).Mode()
}

func finite(x, weights []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	var ws []float64
	if weights != nil {
		ws = make([]float64, 0, len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, v)
		if weights != nil {
			ws = append(ws, weights[i])
		}
	}
	return xs, ws
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
