package chipset

import (
	"fmt"
	"sync"

	apperrors "affynorm/internal/errors"
)

// ProbesetAffinity is the fitted median polish model of one probeset.
// Probe holds one affinity per probe in layout order, Chip one effect per
// training chip.
type ProbesetAffinity struct {
	Overall float64   `json:"overall"`
	Probe   []float64 `json:"probe"`
	Chip    []float64 `json:"chip"`
}

// AffinityModel is the result of a median polish fit over a chipset. It is
// immutable once returned and may be shared by concurrent readers.
type AffinityModel struct {
	// Fingerprint binds the model to the layout it was trained on.
	Fingerprint string                      `json:"fingerprint"`
	Chips       []string                    `json:"chips"`
	Probesets   map[string]ProbesetAffinity `json:"probesets"`
}

// Chipset is an ordered set of chips sharing one layout
type Chipset struct {
	mu       sync.RWMutex
	layout   ProbeLayout
	chips    []*Chip
	byName   map[string]int
	affinity *AffinityModel
}

// New creates an empty chipset for layout
func New(layout ProbeLayout) *Chipset {
	return &Chipset{
		layout: layout,
		byName: make(map[string]int),
	}
}

// Layout returns the shared probe layout
func (cs *Chipset) Layout() ProbeLayout { return cs.layout }

// Add appends chip. Every chip must match the layout's probe count and carry
// a unique name.
func (cs *Chipset) Add(chip *Chip) error {
	n := cs.layout.NumProbes()
	if len(chip.Signal) != n {
		return apperrors.NewLayoutError(fmt.Sprintf("chip %s has %d probes, layout has %d", chip.Name, len(chip.Signal), n)).
			WithContext("chip", chip.Name)
	}
	if chip.Mismatch != nil && len(chip.Mismatch) != n {
		return apperrors.NewLayoutError(fmt.Sprintf("chip %s has %d mismatch values, layout has %d", chip.Name, len(chip.Mismatch), n)).
			WithContext("chip", chip.Name)
	}
	if chip.Mask != nil && len(chip.Mask) != n {
		return apperrors.NewLayoutError(fmt.Sprintf("chip %s has %d mask flags, layout has %d", chip.Name, len(chip.Mask), n)).
			WithContext("chip", chip.Name)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, dup := cs.byName[chip.Name]; dup {
		return apperrors.NewValidationError(fmt.Sprintf("duplicate chip name %q", chip.Name))
	}
	cs.byName[chip.Name] = len(cs.chips)
	cs.chips = append(cs.chips, chip)
	return nil
}

// Len returns the number of chips
func (cs *Chipset) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chips)
}

// Chips returns the chips in insertion order. The slice is a copy; the chips
// are shared.
func (cs *Chipset) Chips() []*Chip {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return append([]*Chip(nil), cs.chips...)
}

// Chip looks a chip up by name
func (cs *Chipset) Chip(name string) (*Chip, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	i, ok := cs.byName[name]
	if !ok {
		return nil, false
	}
	return cs.chips[i], true
}

// Names returns the chip names in insertion order
func (cs *Chipset) Names() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	names := make([]string, len(cs.chips))
	for i, c := range cs.chips {
		names[i] = c.Name
	}
	return names
}

// Affinity returns the cached model, or nil if none has been fitted
func (cs *Chipset) Affinity() *AffinityModel {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.affinity
}

// SetAffinity caches model on the chipset. The model must have been trained
// on the same layout.
func (cs *Chipset) SetAffinity(model *AffinityModel) error {
	if model != nil && model.Fingerprint != Fingerprint(cs.layout) {
		return apperrors.NewLayoutError("affinity model was trained on a different probe layout")
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.affinity = model
	return nil
}
