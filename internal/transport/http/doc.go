// Package http exposes the normalization engine as a JSON API.
//
// Handlers stay thin: they decode and validate the request, call a service
// and render the response with chi/render. Every failure is rendered as an
// RFC 7807 problem by the shared errors.ErrorHandler.
//
// # Routes
//
//	GET  /api/health                     overall health
//	GET  /api/health/ready               readiness (503 when outputs are unavailable)
//	GET  /api/health/live                liveness with runtime details
//	GET  /api/version                    build and format versions
//	POST /api/v1/normalize/pairwise      IRON scale factors for one signal pair
//	POST /api/v1/summarize/biweight      Tukey biweight location
//	POST /api/v1/summarize/median-polish median polish of one probeset
//	POST /api/v1/density/mode            kernel density mode
//	GET  /metrics                        Prometheus scrape endpoint
//
// Non-finite numbers in responses are encoded as null.
package http
