package iron

import "fmt"

// Mode selects how the fitted correction is turned into scale factors
type Mode string

const (
	// ModeCurve applies the smoothed non-linear curve
	ModeCurve Mode = "curve"
	// ModeGlobalScale applies one scale factor to every probe
	ModeGlobalScale Mode = "global-scale"
	// ModeUntilt applies one line fitted over the whole training set
	ModeUntilt Mode = "untilt"
)

const (
	// DefaultSaturation is the intensity at which a 16-bit scanner clips
	DefaultSaturation = 64000.0
	// DefaultPruneFloor is the lowest rank-difference cutoff, as a fraction
	// of the training set size
	DefaultPruneFloor = 0.01
	// DefaultWindowFraction is the local regression window as a fraction of
	// the training set
	DefaultWindowFraction = 0.10

	// cutoffStep is subtracted from the largest observed rank difference
	// to form the next pruning cutoff
	cutoffStep = 0.005
	// edgeValues is the number of curve values averaged for points outside
	// the training range
	edgeValues = 10
	// minSpread bounds the local spread used for pseudo-density weights
	minSpread = 1e-3
)

// Options configures one normalization call
type Options struct {
	Mode Mode
	// Floor is the minimum signal. Values at or below it are unmeasured.
	Floor float64
	// FloorToZero forces a zero scale where the reference is at or below
	// Floor.
	FloorToZero bool
	// WeightExponent raises the pseudo-density weights; 0 fits unweighted.
	WeightExponent float64
	// WindowFraction is the width of each local regression in (0, 1].
	WindowFraction float64
	// FitBothAxes averages the product-axis fit with a current-axis fit.
	FitBothAxes bool
	// Condense collapses identical (current, reference) pairs.
	Condense   bool
	PruneFloor float64
	Saturation float64
}

// DefaultOptions returns the curve mode defaults
func DefaultOptions() Options {
	return Options{
		Mode:           ModeCurve,
		WeightExponent: 1,
		WindowFraction: DefaultWindowFraction,
		PruneFloor:     DefaultPruneFloor,
		Saturation:     DefaultSaturation,
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	switch o.Mode {
	case ModeCurve, ModeGlobalScale, ModeUntilt:
	default:
		return fmt.Errorf("unknown pairwise mode %q", o.Mode)
	}
	if o.WeightExponent < 0 {
		return fmt.Errorf("weight exponent must be >= 0, got %g", o.WeightExponent)
	}
	if o.WindowFraction <= 0 || o.WindowFraction > 1 {
		return fmt.Errorf("window fraction must be in (0, 1], got %g", o.WindowFraction)
	}
	if o.PruneFloor <= 0 || o.PruneFloor >= 1 {
		return fmt.Errorf("prune floor must be in (0, 1), got %g", o.PruneFloor)
	}
	if o.Saturation <= 0 {
		return fmt.Errorf("saturation must be > 0, got %g", o.Saturation)
	}
	return nil
}
