package summarize

import (
	"math"

	"affynorm/internal/numeric"
)

const (
	// biweightC is the tuning constant in MAD units
	biweightC = 5.0
	// biweightEpsilon keeps the scale positive when the MAD is zero
	biweightEpsilon = 1e-4
)

// Biweight returns Tukey's biweight location of x. NaN values are ignored.
// One value is returned as is and two values are averaged. Points further
// than c*MAD from the median get zero weight; if every point does, the plain
// mean is returned. An empty input returns NaN.
func Biweight(x []float64) float64 {
	vals := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}

	switch len(vals) {
	case 0:
		return math.NaN()
	case 1:
		return vals[0]
	case 2:
		return (vals[0] + vals[1]) / 2
	}

	m := numeric.Median(vals)
	s := numeric.MAD(vals, m)
	scale := biweightC*s + biweightEpsilon

	var sw, swx, sum float64
	for _, v := range vals {
		sum += v
		u := (v - m) / scale
		if math.Abs(u) > 1 {
			continue
		}
		w := (1 - u*u) * (1 - u*u)
		sw += w
		swx += w * v
	}
	if sw == 0 {
		return sum / float64(len(vals))
	}
	return swx / sw
}
