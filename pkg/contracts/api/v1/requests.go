// Package api contains the request and response contracts of the affynorm
// HTTP API. Version v1 is the current stable API version.
package api

// PairwiseOptions overrides the configured pairwise normalization settings.
// Zero values keep the server defaults.
type PairwiseOptions struct {
	Mode           string   `json:"mode,omitempty" validate:"omitempty,oneof=curve global-scale untilt"`
	Floor          *float64 `json:"floor,omitempty" validate:"omitempty,gte=0"`
	FloorToZero    bool     `json:"floor_to_zero,omitempty"`
	WeightExponent *float64 `json:"weight_exponent,omitempty" validate:"omitempty,gte=0"`
	WindowFraction float64  `json:"window_fraction,omitempty" validate:"omitempty,gt=0,lte=1"`
	FitBothAxes    bool     `json:"fit_both_axes,omitempty"`
	Condense       bool     `json:"condense,omitempty"`
	PruneFloor     float64  `json:"prune_floor,omitempty" validate:"omitempty,gt=0,lt=1"`
	Saturation     float64  `json:"saturation,omitempty" validate:"omitempty,gt=0"`
}

// PairwiseRequest normalizes one signal vector against a reference
type PairwiseRequest struct {
	Sample    string           `json:"sample,omitempty" validate:"omitempty,max=256"`
	Current   []float64        `json:"current" validate:"required,min=1"`
	Reference []float64        `json:"reference" validate:"required,min=1,eqfield=Current"`
	Mask      []bool           `json:"mask,omitempty"`
	Options   *PairwiseOptions `json:"options,omitempty"`
}

// BiweightRequest summarizes one sample of log2 probe values
type BiweightRequest struct {
	Values []float64 `json:"values" validate:"required,min=1"`
}

// MedianPolishRequest summarizes one probeset across chips. Values holds
// log2 intensities indexed [probe][chip].
type MedianPolishRequest struct {
	Values        [][]float64 `json:"values" validate:"required,min=1,dive,required,min=1"`
	MaxIterations int         `json:"max_iterations,omitempty" validate:"omitempty,gte=1,lte=1000"`
	Epsilon       float64     `json:"epsilon,omitempty" validate:"omitempty,gt=0"`
}

// DensityModeRequest asks for the mode of a kernel density estimate
type DensityModeRequest struct {
	Values   []float64 `json:"values" validate:"required,min=1"`
	Weights  []float64 `json:"weights,omitempty" validate:"omitempty,eqfield=Values,dive,gte=0"`
	GridSize int       `json:"grid_size,omitempty" validate:"omitempty,gte=16,lte=65536"`
	Adjust   float64   `json:"adjust,omitempty" validate:"omitempty,gt=0"`
}
