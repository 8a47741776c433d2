package iron

import (
	"fmt"
	"math"

	apperrors "affynorm/internal/errors"
)

// Result is the outcome of one pairwise normalization
type Result struct {
	// Scales holds one multiplicative factor per probe.
	Scales []float64
	// TrainingFraction is the share of probes usable in both vectors that
	// survived pruning.
	TrainingFraction float64
	// RMSD is the root mean square of the training residuals in log2 units.
	RMSD        float64
	Diagnostics Diagnostics
}

// Normalize computes per-probe scale factors that align current to
// reference. mask may be nil; masked probes are never trained on but still
// receive a scale. The only errors are mismatched lengths and invalid
// options; degenerate data yields neutral scales.
func Normalize(current, reference []float64, mask []bool, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, apperrors.NewConfigError("invalid pairwise options", err)
	}
	n := len(current)
	if len(reference) != n {
		return Result{}, apperrors.NewValidationError(fmt.Sprintf("current has %d probes, reference has %d", n, len(reference)))
	}
	if mask != nil && len(mask) != n {
		return Result{}, apperrors.NewValidationError(fmt.Sprintf("mask has %d entries, signal has %d", len(mask), n))
	}

	diag := Diagnostics{Mode: opts.Mode, Total: n, PruneState: Unpruned}
	for i := range current {
		if mask != nil && mask[i] {
			continue
		}
		if current[i] > opts.Floor {
			diag.UsableCurrent++
		}
		if usable(current, reference, mask, opts.Floor, i) {
			diag.UsableBoth++
		}
	}

	if diag.UsableBoth == 0 || identical(current, reference) {
		return degenerate(reference, opts, diag), nil
	}

	points := buildPoints(current, reference, initialTraining(current, reference, mask, opts), opts.Condense)
	pruned := Prune(points, opts.PruneFloor)
	train := pruned.Points

	diag.PruneState = pruned.State
	diag.PruneIterations = pruned.Iterations
	diag.Trained = totalCount(train)
	diag.TrainingFraction = float64(diag.Trained) / float64(diag.UsableBoth)

	var adjust func(i int) float64
	switch opts.Mode {
	case ModeGlobalScale:
		var sy, sw float64
		for _, p := range train {
			sy += float64(p.Count) * p.Y
			sw += float64(p.Count)
		}
		global := -sy / sw
		for i := range train {
			train[i].Fitted = -global
			train[i].Residual = train[i].Y + global
		}
		adjust = func(int) float64 { return global }

	case ModeUntilt:
		line := fitLine(train, opts.WeightExponent)
		diag.Slope = line.Slope
		diag.Intercept = line.Intercept
		diag.UntiltDegrees = math.Atan(line.Slope) * 180 / math.Pi

		var other FitWindow
		if needsCurrentAxis(reference, opts) {
			other = fitLine(currentAxis(train), opts.WeightExponent)
		}
		adjust = func(i int) float64 {
			xc := 2 * math.Log2(current[i])
			if !validReference(reference[i], opts.Floor) {
				return -other.At(xc)
			}
			adj := -line.At(productAxis(current[i], reference[i]))
			if opts.FitBothAxes {
				adj = (adj - other.At(xc)) / 2
			}
			return adj
		}

	default:
		curve, _ := fitCurve(train, opts.WindowFraction, opts.WeightExponent)
		var other Curve
		if needsCurrentAxis(reference, opts) {
			other, _ = fitCurve(currentAxis(train), opts.WindowFraction, opts.WeightExponent)
		}
		adjust = func(i int) float64 {
			xc := 2 * math.Log2(current[i])
			if !validReference(reference[i], opts.Floor) {
				return -other.At(xc)
			}
			adj := -curve.At(productAxis(current[i], reference[i]))
			if opts.FitBothAxes {
				adj = (adj - other.At(xc)) / 2
			}
			return adj
		}
	}

	scales := make([]float64, n)
	for i := range scales {
		scales[i] = math.Exp2(adjust(i))
	}
	applyFloor(scales, reference, opts)

	var ss, sw, sa float64
	for _, p := range train {
		c := float64(p.Count)
		ss += c * p.Residual * p.Residual
		sa += c * -p.Fitted
		sw += c
	}
	diag.Scale = math.Exp2(sa / sw)
	diag.Log2Scale = sa / sw

	return Result{
		Scales:           scales,
		TrainingFraction: diag.TrainingFraction,
		RMSD:             math.Sqrt(ss / sw),
		Diagnostics:      diag,
	}, nil
}

// Apply multiplies signal by scales in place
func Apply(signal, scales []float64) error {
	if len(signal) != len(scales) {
		return apperrors.NewValidationError(fmt.Sprintf("signal has %d probes, scales has %d", len(signal), len(scales)))
	}
	for i := range signal {
		signal[i] *= scales[i]
	}
	return nil
}

func degenerate(reference []float64, opts Options, diag Diagnostics) Result {
	scales := make([]float64, len(reference))
	for i := range scales {
		scales[i] = 1
	}
	applyFloor(scales, reference, opts)

	diag.Degenerate = true
	diag.Trained = diag.UsableBoth
	diag.TrainingFraction = 1
	diag.Scale = 1
	return Result{
		Scales:           scales,
		TrainingFraction: 1,
		RMSD:             0,
		Diagnostics:      diag,
	}
}

func applyFloor(scales, reference []float64, opts Options) {
	if !opts.FloorToZero {
		return
	}
	for i, r := range reference {
		if !(r > opts.Floor) {
			scales[i] = 0
		}
	}
}

func identical(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func validReference(r, floor float64) bool {
	return r > floor && !math.IsInf(r, 1)
}

func productAxis(cur, ref float64) float64 {
	return math.Log2(cur) + math.Log2(ref)
}

// needsCurrentAxis reports whether a current-only fit is required, either
// because both axes are averaged or because some probe has no usable
// reference to place it on the product axis.
func needsCurrentAxis(reference []float64, opts Options) bool {
	if opts.FitBothAxes {
		return true
	}
	for _, r := range reference {
		if !validReference(r, opts.Floor) {
			return true
		}
	}
	return false
}

// currentAxis copies points onto the current-only axis 2*log2(current)
func currentAxis(points []TrainingPoint) []TrainingPoint {
	out := make([]TrainingPoint, len(points))
	for i, p := range points {
		p.X = 2 * math.Log2(p.Current)
		out[i] = p
	}
	return out
}
