// Package middleware provides the HTTP middleware of the affynorm API:
// request IDs, structured request logging, panic recovery, rate limiting,
// request timeouts, CORS, security headers, OpenTelemetry tracing and
// JSON request validation.
package middleware
