// Package normalize holds the simple cross-chip normalizations: quantile
// normalization over a whole chipset and per-chip scaling to a target
// trimmed mean or median.
package normalize
