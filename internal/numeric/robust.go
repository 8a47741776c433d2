// Package numeric holds the order statistics shared by the normalization and
// summarization packages.
package numeric

import (
	"math"
	"sort"
)

// Median returns the median of the finite values in x. The input is not
// modified. An empty input returns NaN.
func Median(x []float64) float64 {
	work := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			work = append(work, v)
		}
	}
	return MedianInPlace(work)
}

// MedianInPlace sorts x and returns its median. x must not contain NaN.
func MedianInPlace(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(x)
	if n%2 == 0 {
		return (x[n/2-1] + x[n/2]) / 2
	}
	return x[n/2]
}

// MAD returns the unscaled median absolute deviation of x around center
func MAD(x []float64, center float64) float64 {
	dev := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			dev = append(dev, math.Abs(v-center))
		}
	}
	return MedianInPlace(dev)
}

// Ranks returns 1-based ranks of x with ties given their average rank
func Ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && x[idx[j]] == x[idx[i]] {
			j++
		}
		// positions i..j-1 share rank (i+1 + j) / 2
		r := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = r
		}
		i = j
	}
	return ranks
}

// Log2 returns log2(v), or NaN when v is not positive
func Log2(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return math.NaN()
	}
	return math.Log2(v)
}
