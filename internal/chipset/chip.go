package chipset

// SignalVector holds one intensity per probe, index-aligned to a ProbeLayout.
// Pipeline stages mutate it in place and never resize it.
type SignalVector []float64

// Clone returns an independent copy
func (v SignalVector) Clone() SignalVector {
	return append(SignalVector(nil), v...)
}

// MaskFlag records why a probe is excluded from fitting
type MaskFlag uint8

const (
	// MaskQC marks probes that failed loader quality checks
	MaskQC MaskFlag = 1 << iota
	// MaskManual marks probes masked by the user
	MaskManual
	// MaskBelowFloor marks probes at or below the minimum signal
	MaskBelowFloor
)

// Chip is one hybridized array
type Chip struct {
	Name   string
	Origin string

	Signal SignalVector
	// Mismatch holds the MM intensities for PM+MM background estimation.
	// It is nil for PM-only data.
	Mismatch SignalVector
	// Mask is nil or holds one flag set per probe.
	Mask []MaskFlag

	// Corrupt is set by the loader when the source file failed integrity
	// checks. The engine refuses such chips unless salvage is enabled.
	Corrupt bool
}

// NewChip creates a chip with an unmasked signal
func NewChip(name string, signal SignalVector) *Chip {
	return &Chip{Name: name, Signal: signal}
}

// Masked reports whether probe i carries any mask flag
func (c *Chip) Masked(i int) bool {
	return c.Mask != nil && c.Mask[i] != 0
}

// SetMask adds flag to probe i, allocating the mask on first use
func (c *Chip) SetMask(i int, flag MaskFlag) {
	if c.Mask == nil {
		c.Mask = make([]MaskFlag, len(c.Signal))
	}
	c.Mask[i] |= flag
}

// MarkBelowFloor flags every probe whose signal is at or below floor and
// returns how many were flagged.
func (c *Chip) MarkBelowFloor(floor float64) int {
	n := 0
	for i, v := range c.Signal {
		if v <= floor {
			c.SetMask(i, MaskBelowFloor)
			n++
		}
	}
	return n
}

// BuildMask derives the exclusion mask used by one normalization call. A
// probe is excluded when the chip flags it with QC or Manual, when it belongs
// to an excluded or spike-in probeset, or when the layout assigns probesets
// and the probe belongs to none of them. MaskBelowFloor is left to the
// normalizer's own floor handling.
func BuildMask(layout ProbeLayout, chip *Chip) []bool {
	n := layout.NumProbes()
	mask := make([]bool, n)

	sets := layout.Probesets()
	if len(sets) > 0 {
		member := make([]bool, n)
		for _, ps := range sets {
			drop := layout.IsExcluded(ps.Name) || layout.IsSpikeIn(ps.Name)
			for _, idx := range [][]int{ps.PM, ps.MM} {
				for _, i := range idx {
					member[i] = true
					if drop {
						mask[i] = true
					}
				}
			}
		}
		for i := range mask {
			if !member[i] {
				mask[i] = true
			}
		}
	}

	if chip != nil && chip.Mask != nil {
		for i, f := range chip.Mask {
			if f&(MaskQC|MaskManual) != 0 {
				mask[i] = true
			}
		}
	}
	return mask
}
