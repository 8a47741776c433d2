// Package pipeline drives a chipset through validation, background
// correction, normalization and summarization.
//
// Per-chip steps run data-parallel with a bounded number of workers.
// Quantile normalization and median polish need every chip at once and act
// as barriers. Cancellation is observed between chips and between steps,
// never inside a single fit. Each step produces a span and records the
// engine metrics.
package pipeline
