package iron

import (
	"math"

	"affynorm/internal/numeric"
)

// PruneState is the state of the rank-difference pruning loop
type PruneState int

const (
	Unpruned PruneState = iota
	Pruning
	// Converged means an iteration removed nothing or the cutoff reached
	// its floor.
	Converged
	// BackedOff means the last iteration would have left fewer points than
	// the floor fraction allows, so the previous set was kept.
	BackedOff
)

func (s PruneState) String() string {
	switch s {
	case Unpruned:
		return "unpruned"
	case Pruning:
		return "pruning"
	case Converged:
		return "converged"
	case BackedOff:
		return "backed-off"
	default:
		return "unknown"
	}
}

// PruneResult is the outcome of Prune
type PruneResult struct {
	Points     []TrainingPoint
	State      PruneState
	Iterations int
	// Sizes records the candidate set size before the first iteration and
	// after every accepted one.
	Sizes []int
}

// Prune repeatedly discards points whose rank by current differs too much
// from their rank by reference. Each iteration ranks the candidates in both
// vectors, sets the cutoff just below the largest normalized rank difference
// (never below floor) and removes every point at or above it. The candidate
// set never grows, and every iteration that does not terminate removes at
// least one point.
func Prune(points []TrainingPoint, floor float64) PruneResult {
	res := PruneResult{
		Points: points,
		State:  Unpruned,
		Sizes:  []int{len(points)},
	}
	minKeep := int(math.Ceil(floor * float64(len(points))))
	if minKeep < 1 {
		minKeep = 1
	}

	cur := make([]float64, 0, len(points))
	ref := make([]float64, 0, len(points))
	for res.State != Converged && res.State != BackedOff {
		res.State = Pruning
		res.Iterations++

		n := len(res.Points)
		if n < 2 {
			res.State = Converged
			break
		}

		cur, ref = cur[:0], ref[:0]
		for _, p := range res.Points {
			cur = append(cur, p.Current)
			ref = append(ref, p.Reference)
		}
		rc, rr := numeric.Ranks(cur), numeric.Ranks(ref)

		diffs := make([]float64, n)
		maxDiff := 0.0
		for i := range res.Points {
			res.Points[i].RankCurrent = rc[i]
			res.Points[i].RankReference = rr[i]
			diffs[i] = math.Abs(rc[i]-rr[i]) / float64(n)
			maxDiff = math.Max(maxDiff, diffs[i])
		}

		cutoff := maxDiff - cutoffStep
		floored := false
		if cutoff <= floor {
			cutoff = floor
			floored = true
		}

		next := make([]TrainingPoint, 0, n)
		for i, p := range res.Points {
			if diffs[i] < cutoff {
				next = append(next, p)
			}
		}

		switch {
		case len(next) == n:
			res.State = Converged
		case len(next) < minKeep:
			res.State = BackedOff
		default:
			res.Points = next
			res.Sizes = append(res.Sizes, len(next))
			if floored {
				res.State = Converged
			}
		}
	}
	return res
}
