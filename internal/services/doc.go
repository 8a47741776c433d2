// Package services sits between the HTTP handlers and the numeric engine.
//
// EngineService runs single pairwise fits, robust summaries and density mode
// estimates on request payloads, merging per-request options over the
// configured normalization defaults and recording spans and fit metrics.
// HealthService answers health, readiness, liveness and version probes.
//
// Services take their dependencies in the constructor and return engine
// errors unchanged so the transport can map them to problem responses.
package services
