package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"affynorm/internal/config"
	"affynorm/internal/exporter"
	"affynorm/internal/infrastructure"
	"affynorm/internal/loader"
	"affynorm/internal/pipeline"
	"affynorm/internal/validation"
	"affynorm/pkg/contracts"
)

// cliOptions holds the parsed command line
type cliOptions struct {
	Input      string
	ConfigPath string
	OutDir     string
	Sheet      string
	Exclude    string

	// Normalization overrides; empty keeps the configured value.
	Background string
	Method     string
	Mode       string
	Summary    string
	Reference  string
	Workers    int

	Salvage     bool
	Diagnostics bool
	XLSX        bool
	ModelIn     string
	SaveModel   bool
	Version     bool
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("affynorm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.Input, "in", "", "probe matrix to normalize (.tsv, .txt or .xlsx)")
	fs.StringVar(&opts.ConfigPath, "config", "", "YAML configuration file (defaults to affynorm.yaml or config.yaml if present)")
	fs.StringVar(&opts.OutDir, "out", "", "output directory (overrides paths.output_dir; reports go to <out>/reports)")
	fs.StringVar(&opts.Sheet, "sheet", "", "worksheet to read from an .xlsx input (defaults to the first sheet)")
	fs.StringVar(&opts.Exclude, "exclude", "", "comma separated probesets to keep out of normalization")
	fs.StringVar(&opts.Background, "background", "", "background correction: none, rma, rma-pmmm or mas5")
	fs.StringVar(&opts.Method, "method", "", "normalization: none, mean, median, quantile or pairwise")
	fs.StringVar(&opts.Mode, "mode", "", "pairwise fit: curve, global-scale or untilt")
	fs.StringVar(&opts.Summary, "summary", "", "probeset summary: none, biweight or median-polish")
	fs.StringVar(&opts.Reference, "reference", "", "pairwise reference chip (defaults to the most typical chip)")
	fs.IntVar(&opts.Workers, "workers", 0, "chips processed in parallel (defaults to pipeline.workers)")
	fs.BoolVar(&opts.Salvage, "salvage", false, "process chips flagged as corrupt by the loader")
	fs.BoolVar(&opts.Diagnostics, "diagnostics", false, "write the pairwise normalization diagnostics file")
	fs.BoolVar(&opts.XLSX, "xlsx", false, "also write the expression matrix as an Excel workbook")
	fs.StringVar(&opts.ModelIn, "model", "", "affinity model to reuse instead of fitting one")
	fs.BoolVar(&opts.SaveModel, "save-model", false, "write the fitted affinity model to the output directory")
	fs.BoolVar(&opts.Version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Version {
		return opts, nil
	}
	if fs.NArg() > 1 || (fs.NArg() == 1 && opts.Input != "" && opts.Input != fs.Arg(0)) {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.Input == "" && fs.NArg() == 1 {
		opts.Input = fs.Arg(0)
	}
	if opts.Input == "" {
		return nil, errors.New("an input probe matrix is required (-in)")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("invalid -workers %d", opts.Workers)
	}
	return opts, nil
}

// loadConfig reads the configuration and applies the command line overrides
func loadConfig(opts *cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	n := &cfg.Normalization
	if opts.Background != "" {
		n.Background = config.BackgroundMethod(opts.Background)
	}
	if opts.Method != "" {
		n.Method = config.NormalizationMethod(opts.Method)
	}
	if opts.Mode != "" {
		n.Pairwise.Mode = config.PairwiseMode(opts.Mode)
	}
	if opts.Summary != "" {
		n.Summary.Method = config.SummaryMethod(opts.Summary)
	}
	if opts.Reference != "" {
		n.Pairwise.Reference = opts.Reference
	}
	if opts.Salvage {
		n.Salvage = true
	}
	if opts.Diagnostics {
		n.Pairwise.Diagnostics = true
	}
	if opts.Workers > 0 {
		cfg.Pipeline.Workers = opts.Workers
	}
	if opts.OutDir != "" {
		cfg.Paths.OutputDir = opts.OutDir
		cfg.Paths.ReportsDir = filepath.Join(opts.OutDir, "reports")
	}

	// the CLI has no scrape endpoint
	cfg.Telemetry.MetricExporter = "none"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run loads the input, runs the pipeline and exports the results
func run(ctx context.Context, cfg *config.Config, opts *cliOptions, logger *slog.Logger) (*exporter.Written, error) {
	paths, err := config.ResolvePaths(cfg.Paths, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	paths.LogPathResolution(logger)

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateProbeMatrix(opts.Input); err != nil {
		return nil, err
	}
	if opts.ModelIn != "" {
		if err := validator.ValidateModelFile(opts.ModelIn); err != nil {
			return nil, err
		}
	}
	if err := validator.ValidateOutputDirectory(paths.OutputDir); err != nil {
		return nil, err
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()
	metrics, err := infrastructure.NewEngineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine metrics: %w", err)
	}

	ld := loader.New(logger)
	ld.Sheet = opts.Sheet
	ld.Exclude = splitList(opts.Exclude)
	cs, report, err := ld.Load(ctx, opts.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", opts.Input, err)
	}
	logger.Info("probe matrix loaded",
		slog.String("input", opts.Input),
		slog.Int("chips", len(report.Chips)),
		slog.Int("probes", report.Probes),
		slog.Int("probesets", report.Probesets),
		slog.Int("spike_ins", report.SpikeIns),
		slog.Int("excluded", report.Excluded),
		slog.Bool("mismatch", report.Mismatch))
	if len(report.Corrupt) > 0 {
		logger.Warn("corrupt chips in input",
			slog.Any("chips", report.Corrupt),
			slog.Int("bad_cells", report.BadCells),
			slog.Bool("salvage", cfg.Normalization.Salvage))
	}

	if opts.ModelIn != "" {
		model, err := exporter.LoadAffinityModel(opts.ModelIn)
		if err != nil {
			return nil, err
		}
		if err := cs.SetAffinity(model); err != nil {
			return nil, fmt.Errorf("failed to apply affinity model %s: %w", opts.ModelIn, err)
		}
		logger.Info("affinity model loaded", slog.String("path", opts.ModelIn))
	}

	engine, err := pipeline.New(cfg.Normalization, cfg.Pipeline.Workers,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithTracer(providers.Tracer))
	if err != nil {
		return nil, err
	}
	res, err := engine.Run(ctx, cs)
	if err != nil {
		return nil, err
	}

	bundle := exporter.Bundle{Expression: res.Expression}
	if cfg.Normalization.Pairwise.Diagnostics {
		bundle.Diagnostics = res.DiagnosticLines()
	}
	if opts.SaveModel {
		bundle.Model = res.Model
	}
	return exporter.NewExpressionExporter(paths, logger).Export(ctx, bundle, opts.XLSX)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Invalid arguments", slog.String("error", err.Error()))
		os.Exit(2)
	}
	if opts.Version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", slog.String("error", err.Error()))
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	written, err := run(ctx, cfg, opts, logger)
	if err != nil {
		logger.Error("Normalization failed", slog.String("error", err.Error()))
		stop()
		infrastructure.CloseLogFile()
		os.Exit(1)
	}

	for _, path := range []string{written.ExpressionCSV, written.ExpressionXLSX, written.Diagnostics, written.AffinityModel} {
		if path != "" {
			fmt.Println(path)
		}
	}
}
