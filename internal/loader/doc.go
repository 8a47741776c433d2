// Package loader reads probe intensity matrices into chipsets.
//
// A matrix has one row per probe and the columns probe_id, probeset, x and
// y followed by one column per chip. An optional mm_of column turns a row
// into the mismatch partner of the named PM probe. Probesets whose name
// starts with AFFX- are marked as spike-in controls. Tab separated text and
// XLSX workbooks are supported.
//
// Cells that do not parse as finite numbers are stored as zero, masked with
// chipset.MaskQC and mark their chip as corrupt, so the engine can refuse or
// salvage it.
package loader
