package config

import "time"

// Application constants
const (
	AppName   = "affynorm"
	EnvPrefix = "AFFYNORM"

	// Pairwise normalization
	DefaultWeightExponent = 1.0
	DefaultWindowFraction = 0.10
	DefaultPruneFloor     = 0.01
	DefaultSaturation     = 64000.0 // 16-bit scanner ceiling

	// Zone-weighted background
	DefaultZoneCount       = 16
	DefaultZoneSmooth      = 100.0
	DefaultNoiseFraction   = 0.5
	DefaultZoneLowFraction = 0.02

	// Summarization
	DefaultPolishIterations = 10
	DefaultPolishEpsilon    = 0.01

	DefaultMinSignal  = 0.0
	DefaultMeanTarget = 500.0

	// Pipeline
	DefaultWorkers = 4

	// Server
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 2 * time.Minute
	DefaultIdleTimeout     = 2 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimitRPS    = 20
	DefaultRateLimitBurst  = 40
	MaxRequestBodyBytes    = 64 << 20

	// Telemetry
	DefaultRuntimeInterval = 15 * time.Second

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogOutput = "console"

	// File Paths
	DefaultOutputDir  = "output"
	DefaultReportsDir = "output/reports"
	DefaultLogsDir    = "logs"
)
