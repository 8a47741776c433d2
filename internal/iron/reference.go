package iron

import (
	"math"

	"affynorm/internal/numeric"
)

// ChooseReference returns the index of the most typical signal: the one
// whose log2 values are closest, in root mean square, to the probe-wise
// median of all signals. Only positive values take part. Ties go to the
// lowest index; an empty input returns -1.
func ChooseReference(signals [][]float64) int {
	if len(signals) == 0 {
		return -1
	}
	if len(signals) == 1 {
		return 0
	}

	n := len(signals[0])
	medians := make([]float64, n)
	column := make([]float64, 0, len(signals))
	for i := 0; i < n; i++ {
		column = column[:0]
		for _, s := range signals {
			if i < len(s) && s[i] > 0 {
				column = append(column, math.Log2(s[i]))
			}
		}
		medians[i] = numeric.MedianInPlace(column)
	}

	best, bestDist := -1, math.Inf(1)
	for k, s := range signals {
		var ss float64
		var count int
		for i, m := range medians {
			if i >= len(s) || !(s[i] > 0) || math.IsNaN(m) {
				continue
			}
			d := math.Log2(s[i]) - m
			ss += d * d
			count++
		}
		if count == 0 {
			continue
		}
		if dist := math.Sqrt(ss / float64(count)); dist < bestDist {
			best, bestDist = k, dist
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
