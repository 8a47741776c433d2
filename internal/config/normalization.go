package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BackgroundMethod selects the background correction strategy
type BackgroundMethod string

const (
	// BackgroundNone leaves raw intensities untouched
	BackgroundNone BackgroundMethod = "none"
	// BackgroundRMA is the density-model correction on PM probes only
	BackgroundRMA BackgroundMethod = "rma"
	// BackgroundRMAPMMM is the density-model correction using MM probes for the noise estimate
	BackgroundRMAPMMM BackgroundMethod = "rma-pmmm"
	// BackgroundMAS5 is the zone-weighted spatial correction
	BackgroundMAS5 BackgroundMethod = "mas5"
)

// NormalizationMethod selects the cross-chip normalization
type NormalizationMethod string

const (
	NormalizationNone     NormalizationMethod = "none"
	NormalizationMean     NormalizationMethod = "mean"
	NormalizationMedian   NormalizationMethod = "median"
	NormalizationQuantile NormalizationMethod = "quantile"
	NormalizationPairwise NormalizationMethod = "pairwise"
)

// PairwiseMode selects the IRON fit strategy
type PairwiseMode string

const (
	// PairwiseCurve fits a smoothed non-linear curve
	PairwiseCurve PairwiseMode = "curve"
	// PairwiseGlobalScale applies one scale factor to every probe
	PairwiseGlobalScale PairwiseMode = "global-scale"
	// PairwiseUntilt fits a single line over the whole training set
	PairwiseUntilt PairwiseMode = "untilt"
)

// SummaryMethod selects the probeset summarization
type SummaryMethod string

const (
	SummaryNone         SummaryMethod = "none"
	SummaryBiweight     SummaryMethod = "biweight"
	SummaryMedianPolish SummaryMethod = "median-polish"
)

// NormalizationConfig is the immutable configuration consumed by every stage
// of the engine. It is passed by value.
type NormalizationConfig struct {
	Background BackgroundMethod    `yaml:"background" envconfig:"BACKGROUND" validate:"oneof=none rma rma-pmmm mas5"`
	Method     NormalizationMethod `yaml:"method" envconfig:"METHOD" validate:"oneof=none mean median quantile pairwise"`
	Pairwise   PairwiseConfig      `yaml:"pairwise" envconfig:"PAIRWISE"`
	Zones      ZoneConfig          `yaml:"zones" envconfig:"ZONES"`
	Summary    SummaryConfig       `yaml:"summary" envconfig:"SUMMARY"`

	// MinSignal is the floor below which a probe is treated as unmeasured.
	MinSignal float64 `yaml:"min_signal" envconfig:"MIN_SIGNAL" validate:"gte=0"`
	// FloorToZero forces a zero scale factor where the reference is at or
	// below MinSignal.
	FloorToZero bool `yaml:"floor_to_zero" envconfig:"FLOOR_TO_ZERO"`
	// Salvage processes chips the loader flagged as corrupt.
	Salvage bool `yaml:"salvage" envconfig:"SALVAGE"`
	// MeanTarget is the target of mean and median scaling.
	MeanTarget float64 `yaml:"mean_target" envconfig:"MEAN_TARGET" validate:"gt=0"`
}

// PairwiseConfig holds the IRON normalizer settings
type PairwiseConfig struct {
	Mode PairwiseMode `yaml:"mode" envconfig:"MODE" validate:"oneof=curve global-scale untilt"`
	// Reference names the reference chip. Empty selects the most typical chip.
	Reference          string  `yaml:"reference" envconfig:"REFERENCE"`
	WeightExponent     float64 `yaml:"weight_exponent" envconfig:"WEIGHT_EXPONENT" validate:"gte=0"`
	WindowFraction     float64 `yaml:"window_fraction" envconfig:"WINDOW_FRACTION" validate:"gt=0,lte=1"`
	FitBothAxes        bool    `yaml:"fit_both_axes" envconfig:"FIT_BOTH_AXES"`
	CondenseDuplicates bool    `yaml:"condense_duplicates" envconfig:"CONDENSE_DUPLICATES"`
	PruneFloor         float64 `yaml:"prune_floor" envconfig:"PRUNE_FLOOR" validate:"gt=0,lt=1"`
	Saturation         float64 `yaml:"saturation" envconfig:"SATURATION" validate:"gt=0"`
	// Diagnostics writes the legacy GlobalScale/GlobalFitLine lines.
	Diagnostics bool `yaml:"diagnostics" envconfig:"DIAGNOSTICS"`
}

// ZoneConfig holds the zone-weighted background settings
type ZoneConfig struct {
	Count         int     `yaml:"count" envconfig:"COUNT" validate:"gte=1"`
	Smooth        float64 `yaml:"smooth" envconfig:"SMOOTH" validate:"gt=0"`
	NoiseFraction float64 `yaml:"noise_fraction" envconfig:"NOISE_FRACTION" validate:"gte=0"`
	LowFraction   float64 `yaml:"low_fraction" envconfig:"LOW_FRACTION" validate:"gt=0,lte=1"`
}

// SummaryConfig holds the probeset summarization settings
type SummaryConfig struct {
	Method        SummaryMethod `yaml:"method" envconfig:"METHOD" validate:"oneof=none biweight median-polish"`
	MaxIterations int           `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"gte=1"`
	Epsilon       float64       `yaml:"epsilon" envconfig:"EPSILON" validate:"gt=0"`
	// Log2Output reports log2 expression values instead of linear ones.
	Log2Output bool `yaml:"log2_output" envconfig:"LOG2_OUTPUT"`
}

// DefaultNormalization returns the defaults of the IRON pipeline
func DefaultNormalization() NormalizationConfig {
	return NormalizationConfig{
		Background: BackgroundRMA,
		Method:     NormalizationPairwise,
		Pairwise: PairwiseConfig{
			Mode:           PairwiseCurve,
			WeightExponent: DefaultWeightExponent,
			WindowFraction: DefaultWindowFraction,
			PruneFloor:     DefaultPruneFloor,
			Saturation:     DefaultSaturation,
		},
		Zones: ZoneConfig{
			Count:         DefaultZoneCount,
			Smooth:        DefaultZoneSmooth,
			NoiseFraction: DefaultNoiseFraction,
			LowFraction:   DefaultZoneLowFraction,
		},
		Summary: SummaryConfig{
			Method:        SummaryMedianPolish,
			MaxIterations: DefaultPolishIterations,
			Epsilon:       DefaultPolishEpsilon,
			Log2Output:    true,
		},
		MinSignal:  DefaultMinSignal,
		MeanTarget: DefaultMeanTarget,
	}
}

var validate = validator.New()

// Validate checks field ranges and enumerations
func (c NormalizationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid normalization config: %s", describe(err))
	}
	return nil
}

// describe flattens validator errors into one line
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return strings.Join(parts, "; ")
}
