package normalize

import (
	"fmt"
	"math"
	"sort"

	apperrors "affynorm/internal/errors"
	"affynorm/internal/numeric"
)

// Quantile forces every chip onto the mean empirical distribution of all
// chips. chips[j] is the signal of chip j and is rewritten in place. Probes
// with mask[i] set, and non-finite values, keep their value and do not
// contribute to the reference distribution. Tied values share the reference
// value at their average rank.
func Quantile(chips [][]float64, mask []bool) error {
	if len(chips) == 0 {
		return nil
	}
	n := len(chips[0])
	for j, c := range chips {
		if len(c) != n {
			return apperrors.NewValidationError(fmt.Sprintf("chip %d has %d probes, expected %d", j, len(c), n))
		}
	}
	if mask != nil && len(mask) != n {
		return apperrors.NewValidationError(fmt.Sprintf("mask has %d entries, expected %d", len(mask), n))
	}

	idx := make([][]int, len(chips))
	sorted := make([][]float64, len(chips))
	grid := 0
	for j, c := range chips {
		for i, v := range c {
			if (mask != nil && mask[i]) || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			idx[j] = append(idx[j], i)
			sorted[j] = append(sorted[j], v)
		}
		sort.Float64s(sorted[j])
		grid = max(grid, len(sorted[j]))
	}
	if grid == 0 {
		return nil
	}

	ref := make([]float64, grid)
	for k := range ref {
		p := position(k, grid)
		var sum float64
		var count int
		for _, s := range sorted {
			if len(s) == 0 {
				continue
			}
			sum += interpolate(s, p)
			count++
		}
		ref[k] = sum / float64(count)
	}

	vals := make([]float64, 0, grid)
	for j, c := range chips {
		m := len(idx[j])
		if m == 0 {
			continue
		}
		vals = vals[:0]
		for _, i := range idx[j] {
			vals = append(vals, c[i])
		}
		ranks := numeric.Ranks(vals)
		for k, i := range idx[j] {
			var p float64
			if m == 1 {
				p = 0.5
			} else {
				p = (ranks[k] - 1) / float64(m-1)
			}
			c[i] = interpolate(ref, p)
		}
	}
	return nil
}

// position maps index k of an n point grid onto [0, 1]
func position(k, n int) float64 {
	if n == 1 {
		return 0.5
	}
	return float64(k) / float64(n-1)
}

// interpolate reads the sorted vector s at relative position p in [0, 1]
func interpolate(s []float64, p float64) float64 {
	if len(s) == 1 {
		return s[0]
	}
	x := p * float64(len(s)-1)
	lo := int(math.Floor(x))
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	t := x - float64(lo)
	if t == 0 {
		return s[lo]
	}
	return s[lo] + t*(s[lo+1]-s[lo])
}
