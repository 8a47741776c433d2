// Package config loads and validates the affynorm configuration.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones taking
// precedence:
//
//  1. Default values
//  2. A YAML file (explicit path, or affynorm.yaml, config.yaml or
//     configs/config.yaml in the working directory)
//  3. Environment variables
//
// # Environment Variables
//
// Variables carry the AFFYNORM prefix and follow the nesting of the YAML
// keys:
//
//	AFFYNORM_LOGGING_LEVEL=debug
//	AFFYNORM_PIPELINE_WORKERS=8
//	AFFYNORM_NORMALIZATION_BACKGROUND=mas5
//	AFFYNORM_NORMALIZATION_PAIRWISE_MODE=untilt
//	AFFYNORM_NORMALIZATION_SUMMARY_METHOD=biweight
//
// # Normalization
//
// NormalizationConfig is the immutable value threaded through every engine
// stage. It enumerates the background strategy, the normalization method,
// the pairwise sub-mode and its fit parameters, the zone settings and the
// summarization settings. Validate checks every range and enumeration with
// go-playground/validator struct tags.
//
// # Paths
//
// ResolvePaths turns the configured output, reports and logs directories
// into absolute paths and names the well-known output files.
package config
