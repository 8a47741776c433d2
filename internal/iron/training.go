package iron

import (
	"math"
)

// TrainingPoint is one (current, reference) pair considered for fitting.
// Points live for a single Normalize call.
type TrainingPoint struct {
	Index     int
	Current   float64
	Reference float64
	// Count is the number of identical pairs this point stands for when
	// duplicates are condensed, otherwise 1.
	Count int

	// X is the position on the fit axis and Y = log2(current/reference).
	X, Y float64

	RankCurrent   float64
	RankReference float64
	Weight        float64
	Fitted        float64
	Residual      float64
}

type pair struct{ cur, ref float64 }

// usable reports whether probe i is unmasked with both values above floor
func usable(cur, ref []float64, mask []bool, floor float64, i int) bool {
	if mask != nil && mask[i] {
		return false
	}
	c, r := cur[i], ref[i]
	return c > floor && r > floor && !math.IsInf(c, 1) && !math.IsInf(r, 1)
}

// initialTraining applies the initial filter: usable probes strictly above
// the smallest usable value of each vector and below saturation. Either
// filter is skipped when it would leave nothing.
func initialTraining(cur, ref []float64, mask []bool, opts Options) []int {
	candidates := make([]int, 0, len(cur))
	minCur, minRef := math.Inf(1), math.Inf(1)
	for i := range cur {
		if !usable(cur, ref, mask, opts.Floor, i) {
			continue
		}
		candidates = append(candidates, i)
		minCur = math.Min(minCur, cur[i])
		minRef = math.Min(minRef, ref[i])
	}

	// A vector with a single distinct value sits entirely at its minimum,
	// so the strict bound would drop every probe of a constant-ratio pair.
	candidates = keepIfAny(candidates, func(i int) bool {
		return cur[i] > minCur && ref[i] > minRef
	})
	candidates = keepIfAny(candidates, func(i int) bool {
		return cur[i] < opts.Saturation && ref[i] < opts.Saturation
	})
	return candidates
}

func keepIfAny(idx []int, keep func(int) bool) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if keep(i) {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return idx
	}
	return out
}

// buildPoints creates training points for idx, collapsing identical pairs
// when condense is set.
func buildPoints(cur, ref []float64, idx []int, condense bool) []TrainingPoint {
	points := make([]TrainingPoint, 0, len(idx))
	var seen map[pair]int
	if condense {
		seen = make(map[pair]int, len(idx))
	}

	for _, i := range idx {
		if condense {
			key := pair{cur[i], ref[i]}
			if j, ok := seen[key]; ok {
				points[j].Count++
				continue
			}
			seen[key] = len(points)
		}
		lc, lr := math.Log2(cur[i]), math.Log2(ref[i])
		points = append(points, TrainingPoint{
			Index:     i,
			Current:   cur[i],
			Reference: ref[i],
			Count:     1,
			X:         lc + lr,
			Y:         lc - lr,
		})
	}
	return points
}

func totalCount(points []TrainingPoint) int {
	n := 0
	for _, p := range points {
		n += p.Count
	}
	return n
}
