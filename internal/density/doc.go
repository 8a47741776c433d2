// Package density estimates the dominant mode of a one dimensional sample.
//
// The estimate is a binned kernel density: observations are spread linearly
// onto a power of two grid, convolved with an Epanechnikov kernel through an
// FFT and interpolated back onto a regular evaluation grid. The bandwidth is
// Silverman's rule of thumb using the smaller of the standard deviation and
// the scaled inter-quartile range.
//
//	mu := density.Mode(values)
//
// The background correctors use the mode to locate the centre of the
// optical noise distribution.
package density
