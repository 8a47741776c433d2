package normalize

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/numeric"
)

// TrimFraction is the share of values dropped from each tail of the trimmed
// mean
const TrimFraction = 0.02

// Scale multiplies signal in place so that its trimmed mean, or median, of
// unmasked positive values equals target. It returns the factor applied. A
// signal without usable values is left unchanged with factor 1.
func Scale(signal []float64, mask []bool, target float64, method config.NormalizationMethod) (float64, error) {
	if mask != nil && len(mask) != len(signal) {
		return 0, apperrors.NewValidationError(fmt.Sprintf("mask has %d entries, signal has %d", len(mask), len(signal)))
	}
	if target <= 0 {
		return 0, apperrors.NewConfigError(fmt.Sprintf("scaling target must be positive, got %g", target), nil)
	}

	vals := make([]float64, 0, len(signal))
	for i, v := range signal {
		if (mask != nil && mask[i]) || !(v > 0) || math.IsInf(v, 0) {
			continue
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return 1, nil
	}

	var center float64
	switch method {
	case config.NormalizationMean:
		center = TrimmedMean(vals, TrimFraction)
	case config.NormalizationMedian:
		center = numeric.MedianInPlace(vals)
	default:
		return 0, apperrors.NewConfigError(fmt.Sprintf("%q is not a scaling method", method), nil)
	}

	factor := target / center
	for i := range signal {
		signal[i] *= factor
	}
	return factor, nil
}

// TrimmedMean returns the mean of x after dropping frac of the values from
// each end. x is sorted in place.
func TrimmedMean(x []float64, frac float64) float64 {
	sort.Float64s(x)
	k := int(math.Floor(frac * float64(len(x))))
	if 2*k >= len(x) {
		k = (len(x) - 1) / 2
	}
	return stat.Mean(x[k:len(x)-k], nil)
}
