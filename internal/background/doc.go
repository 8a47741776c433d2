// Package background removes optical and non-specific background from raw
// probe intensities.
//
// Two strategies are provided. RMA fits a normal noise plus exponential
// signal model to the intensity distribution, locating the noise mode with a
// kernel density estimate. Zones estimates a background and noise level for
// each rectangular region of the chip surface and interpolates them to every
// cell with inverse squared distance weights.
package background
