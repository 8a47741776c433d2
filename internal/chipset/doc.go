// Package chipset holds the data model shared by every stage of the engine:
// chips and their signal vectors, the probe layout they are aligned to, and
// the chipset that groups them together with an optional affinity model.
//
// All chips in a Chipset have the same number of probes as its layout. Stages
// mutate Chip.Signal in place; nothing in this package resizes it.
package chipset
