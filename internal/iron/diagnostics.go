package iron

import (
	"fmt"
	"strings"
)

// Diagnostics summarizes one Normalize call
type Diagnostics struct {
	Mode Mode `json:"mode"`

	// Scale is the geometric mean scale over the training set; in
	// global-scale mode it is the applied scale.
	Scale     float64 `json:"scale"`
	Log2Scale float64 `json:"log2_scale"`

	// Slope, Intercept and UntiltDegrees describe the single line of
	// untilt mode.
	Slope         float64 `json:"slope,omitempty"`
	Intercept     float64 `json:"intercept,omitempty"`
	UntiltDegrees float64 `json:"untilt_degrees,omitempty"`

	Trained          int     `json:"trained"`
	UsableBoth       int     `json:"usable_both"`
	UsableCurrent    int     `json:"usable_current"`
	Total            int     `json:"total"`
	TrainingFraction float64 `json:"training_fraction"`

	PruneState      PruneState `json:"-"`
	PruneIterations int        `json:"prune_iterations"`
	Degenerate      bool       `json:"degenerate"`
}

// Line renders the tab-separated record read by existing log consumers.
// Untilt mode produces a GlobalFitLine record, every other mode a
// GlobalScale record.
func (d Diagnostics) Line(sample string) string {
	var b strings.Builder
	if d.Mode == ModeUntilt {
		fmt.Fprintf(&b, "GlobalFitLine:\t%s\t%f\t%f\t%f\t%d\t%d\t%d",
			sample, 1/d.Scale, -d.Log2Scale, d.UntiltDegrees,
			d.UsableBoth, d.UsableCurrent, d.Total)
		return b.String()
	}
	fmt.Fprintf(&b, "GlobalScale:\t%s\t%f\t%f\t%d\t%d\t%d\t%d\t%f",
		sample, d.Scale, d.Log2Scale, d.Trained,
		d.UsableBoth, d.UsableCurrent, d.Total, d.TrainingFraction)
	return b.String()
}
