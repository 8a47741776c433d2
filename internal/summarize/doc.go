// Package summarize collapses the probes of each probeset into a single
// expression value per chip.
//
// Two estimators are provided. Biweight is a per-chip robust location of the
// log2 probe values. Median polish fits an additive model of probe affinity
// plus chip effect across the whole chipset; the fitted probe affinities form
// an AffinityModel that can be stored and applied to chips that were not part
// of the training set.
package summarize
