package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	"affynorm/internal/config"
	apierrors "affynorm/internal/errors"
	"affynorm/internal/infrastructure"
	"affynorm/internal/middleware"
)

// RouterConfig collects the dependencies of the HTTP API
type RouterConfig struct {
	Server config.ServerConfig
	Health HealthServiceInterface
	Engine EngineServiceInterface

	Tracer  trace.Tracer
	Metrics *infrastructure.EngineMetrics
	// MetricsExporter serves /metrics; nil disables the endpoint.
	MetricsExporter http.Handler
	Logger          *slog.Logger
	// IncludeStack adds stack traces to problem responses.
	IncludeStack bool
}

// NewRouter builds the chi router. Middleware order is RequestID, RealIP,
// OTel, logging, recovery, security headers, CORS, rate limiting and, on
// API routes, the request timeout. Failed engine requests are additionally
// logged with a summary of their body.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apierrors.NewErrorHandler(logger, cfg.IncludeStack)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewOTelMiddleware(cfg.Tracer, cfg.Metrics, logger).Handler)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ExposedHeaders: []string{middleware.RequestIDHeader},
		Logger:         logger,
	}))
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger).Handler)
	}

	r.NotFound(errorHandler.NotFound)
	r.Handle("/metrics", NewMetricsHandler(cfg.MetricsExporter, errorHandler))

	maxBody := cfg.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.MaxRequestBodyBytes
	}
	validator := middleware.NewRequestValidator(logger, maxBody)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if cfg.Server.ReadTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.ReadTimeout, logger))
		}

		health := NewHealthHandler(cfg.Health, logger)
		r.Get("/health", health.HealthCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)

		r.Route("/v1", func(r chi.Router) {
			r.Use(apierrors.NewErrorMiddleware(errorHandler, logger).Handler)
			r.Mount("/", NewEngineHandler(cfg.Engine, validator, errorHandler, logger).Routes())
		})
	})

	return r
}
