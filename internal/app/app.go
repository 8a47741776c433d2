package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"affynorm/internal/config"
	"affynorm/internal/files"
	"affynorm/internal/infrastructure"
	"affynorm/internal/services"
	transport "affynorm/internal/transport/http"
	"affynorm/internal/validation"
	"affynorm/pkg/contracts"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Options selects where the application reads its configuration from
type Options struct {
	// ConfigPath is a YAML file; empty searches the usual locations.
	ConfigPath string
	// BaseDir anchors relative output paths; empty uses the working directory.
	BaseDir string
}

// Application represents the HTTP service container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.EngineMetrics
	Services      *ServiceContainer

	mu       sync.Mutex
	listener net.Listener
	group    *errgroup.Group
	cancel   context.CancelFunc
	stopped  chan struct{}
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Engine *services.EngineService
	Health *services.HealthService
}

// NewApplication wires configuration, logging, telemetry, services and the
// router. Nothing is started until Start.
func NewApplication(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = infrastructure.WithComponent(logger, "server")

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths, err := config.ResolvePaths(cfg.Paths, opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewEngineMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		stopped:       make(chan struct{}),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.setupRouter()
	app.createServer()
	return app, nil
}

func (a *Application) initializeServices() error {
	engine, err := services.NewEngineService(a.Config.Normalization, a.OTelProviders.Tracer, a.Metrics, a.Logger)
	if err != nil {
		return err
	}
	a.Services = &ServiceContainer{
		Engine: engine,
		Health: services.NewHealthService(contracts.Version, a.Paths, a.Logger),
	}
	return nil
}

func (a *Application) setupRouter() {
	a.Router = transport.NewRouter(transport.RouterConfig{
		Server:          a.Config.Server,
		Health:          a.Services.Health,
		Engine:          a.Services.Engine,
		Tracer:          a.OTelProviders.Tracer,
		Metrics:         a.Metrics,
		MetricsExporter: a.OTelProviders.PrometheusHTTP,
		Logger:          a.Logger,
		IncludeStack:    strings.EqualFold(a.Config.Telemetry.Environment, "development"),
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Addr returns the address the server listens on once started
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listener and serves in the background. A bind failure is
// returned directly; a later serve failure cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("version", contracts.Version),
		slog.String("addr", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level),
		slog.String("output_dir", a.Paths.OutputDir))

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(bgCtx)

	a.mu.Lock()
	a.listener = ln
	a.group = group
	a.cancel = bgCancel
	a.mu.Unlock()

	group.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
			return err
		}
		return nil
	})

	if interval := a.Config.Telemetry.RuntimeInterval; interval > 0 {
		runtimeMetrics, err := infrastructure.NewRuntimeMetrics(a.OTelProviders.Meter)
		if err != nil {
			a.Logger.WarnContext(ctx, "runtime metrics disabled", slog.String("error", err.Error()))
		} else {
			group.Go(func() error {
				return runtimeMetrics.Run(gctx, interval)
			})
		}
	}

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", "http://"+ln.Addr().String()))
	return nil
}

// Stop gracefully stops the application. Calling it more than once is safe.
func (a *Application) Stop(ctx context.Context) error {
	a.mu.Lock()
	select {
	case <-a.stopped:
		a.mu.Unlock()
		return nil
	default:
		close(a.stopped)
	}
	group, cancel := a.group, a.cancel
	a.mu.Unlock()

	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run starts the application and blocks until ctx is done, an interrupt
// signal arrives, Stop is called elsewhere, or the server fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	case <-a.stopped:
	}

	// Stop must outlive the cancelled run context
	return a.Stop(context.WithoutCancel(ctx))
}

// performStartupHealthCheck verifies the output directories are writable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	validator := validation.NewFileValidator(a.Logger)
	var warnings []string

	directories := []struct {
		name string
		dir  string
	}{
		{"output", a.Paths.OutputDir},
		{"reports", a.Paths.ReportsDir},
		{"logs", a.Paths.LogsDir},
	}
	for _, d := range directories {
		if err := validator.CheckWritable(d.dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", d.name, d.dir))
		}
	}

	fm := files.NewManager(a.Paths, a.Logger)
	if fm.FileExists(a.Paths.AffinityModel) {
		a.Logger.InfoContext(ctx, "affinity model present", slog.String("path", a.Paths.AffinityModel))
	}
	if existing, err := fm.ListFiles("output/"); err == nil && len(existing) > 0 {
		a.Logger.InfoContext(ctx, "output directory already holds results",
			slog.Int("files", len(existing)),
			slog.Any("names", existing))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}
	a.Logger.InfoContext(ctx, "startup health check passed")
	return nil
}
