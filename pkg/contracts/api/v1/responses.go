package api

import (
	"encoding/json"
	"math"
)

// Float is a float64 that encodes non-finite values as null
type Float float64

// MarshalJSON implements json.Marshaler
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Floats converts a slice for encoding
func Floats(xs []float64) []Float {
	out := make([]Float, len(xs))
	for i, x := range xs {
		out[i] = Float(x)
	}
	return out
}

// PairwiseDiagnostics describes one pairwise fit
type PairwiseDiagnostics struct {
	Mode             string `json:"mode"`
	Scale            Float  `json:"scale"`
	Log2Scale        Float  `json:"log2_scale"`
	Slope            Float  `json:"slope,omitempty"`
	Intercept        Float  `json:"intercept,omitempty"`
	UntiltDegrees    Float  `json:"untilt_degrees,omitempty"`
	Trained          int    `json:"trained"`
	UsableBoth       int    `json:"usable_both"`
	UsableCurrent    int    `json:"usable_current"`
	Total            int    `json:"total"`
	TrainingFraction Float  `json:"training_fraction"`
	PruneState       string `json:"prune_state"`
	PruneIterations  int    `json:"prune_iterations"`
	Degenerate       bool   `json:"degenerate"`
	// Line is the tab separated record written to diagnostics files.
	Line string `json:"line"`
}

// PairwiseResponse carries per-probe scale factors and the corrected signal
type PairwiseResponse struct {
	Scales      []Float             `json:"scales"`
	Normalized  []Float             `json:"normalized"`
	RMSD        Float               `json:"rmsd"`
	Diagnostics PairwiseDiagnostics `json:"diagnostics"`
}

// SummaryResponse is a single robust summary
type SummaryResponse struct {
	Value Float `json:"value"`
	N     int   `json:"n"`
}

// MedianPolishResponse holds the fitted expression per chip and the model
// terms of the probeset.
type MedianPolishResponse struct {
	Expression []Float `json:"expression"`
	Overall    Float   `json:"overall"`
	Probe      []Float `json:"probe"`
	Chip       []Float `json:"chip"`
}

// DensityModeResponse is the location of the density maximum
type DensityModeResponse struct {
	Mode Float `json:"mode"`
	N    int   `json:"n"`
}
