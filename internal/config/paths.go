package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds the resolved output locations of a run. Every path is
// absolute.
type Paths struct {
	BaseDir    string
	OutputDir  string
	ReportsDir string
	LogsDir    string

	// Well-known output files
	ExpressionCSV   string
	ExpressionXLSX  string
	DiagnosticsFile string
	AffinityModel   string
}

// ResolvePaths resolves cfg against baseDir. Absolute entries in cfg are
// kept as is. An empty baseDir uses the current working directory.
func ResolvePaths(cfg PathsConfig, baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}

	resolve := func(p, fallback string) string {
		if p == "" {
			p = fallback
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	output := resolve(cfg.OutputDir, DefaultOutputDir)
	reports := resolve(cfg.ReportsDir, DefaultReportsDir)
	return &Paths{
		BaseDir:         base,
		OutputDir:       output,
		ReportsDir:      reports,
		LogsDir:         resolve(cfg.LogsDir, DefaultLogsDir),
		ExpressionCSV:   filepath.Join(output, "expression.csv"),
		ExpressionXLSX:  filepath.Join(output, "expression.xlsx"),
		DiagnosticsFile: filepath.Join(reports, "normalization_diagnostics.txt"),
		AffinityModel:   filepath.Join(output, "affinity_model.json"),
	}, nil
}

// EnsureDirectories creates the output, reports and logs directories
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// GetOutputPath returns filename inside the output directory
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// GetReportPath returns filename inside the reports directory
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns filename inside the logs directory
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists reports whether path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("output", p.OutputDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("expression_csv", p.ExpressionCSV),
			slog.String("expression_xlsx", p.ExpressionXLSX),
			slog.String("diagnostics", p.DiagnosticsFile),
			slog.String("affinity_model", p.AffinityModel),
		))
}
