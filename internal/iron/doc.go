// Package iron implements iterative rank-order normalization: a pairwise
// normalizer that aligns one chip's signal to a reference chip.
//
// A training set of probes that behave consistently between the two chips
// is found by repeatedly pruning probes whose rank in one chip differs too
// much from their rank in the other. The log ratio of the survivors is then
// fitted against their log product with overlapping weighted local
// regressions, and every probe receives the scale that the smoothed curve
// predicts at its position. Global-scale and untilt modes replace the curve
// with a single factor or a single line.
//
// Normalize never fails on degenerate data. Identical inputs, or inputs
// with no probe usable in both chips, yield unit scales.
package iron
