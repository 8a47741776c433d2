package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
	"affynorm/internal/files"
	"affynorm/internal/summarize"
)

const (
	SheetExpression  = "expression"
	SheetDiagnostics = "diagnostics"
)

// Bundle is everything a run produces
type Bundle struct {
	Expression  *summarize.Expression
	Model       *summarize.AffinityModel
	Diagnostics []string
}

// Written lists the files an export produced
type Written struct {
	ExpressionCSV  string
	ExpressionXLSX string
	Diagnostics    string
	AffinityModel  string
}

// ExpressionExporter writes run results to the well-known output files
type ExpressionExporter struct {
	paths     *config.Paths
	csvWriter *CSVWriter
	files     *files.Manager
	logger    *slog.Logger
}

// NewExpressionExporter creates an exporter writing below paths
func NewExpressionExporter(paths *config.Paths, logger *slog.Logger) *ExpressionExporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "exporter"))
	return &ExpressionExporter{
		paths:     paths,
		csvWriter: NewCSVWriter(paths, logger),
		files:     files.NewManager(paths, logger),
		logger:    logger,
	}
}

// Export writes every non-empty part of b concurrently. The XLSX workbook is
// written only when withXLSX is set.
func (e *ExpressionExporter) Export(ctx context.Context, b Bundle, withXLSX bool) (*Written, error) {
	if err := e.paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewStorageError("failed to create output directories", err)
	}

	var out Written
	g, ctx := errgroup.WithContext(ctx)
	if b.Expression != nil {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out.ExpressionCSV = e.paths.ExpressionCSV
			return e.ExportCSV(b.Expression, e.paths.ExpressionCSV)
		})
		if withXLSX {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				out.ExpressionXLSX = e.paths.ExpressionXLSX
				return e.ExportXLSX(b.Expression, b.Diagnostics, e.paths.ExpressionXLSX)
			})
		}
	}
	if len(b.Diagnostics) > 0 {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out.Diagnostics = e.paths.DiagnosticsFile
			return e.ExportDiagnostics(b.Diagnostics, e.paths.DiagnosticsFile)
		})
	}
	if b.Model != nil {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out.AffinityModel = e.paths.AffinityModel
			return SaveAffinityModel(b.Model, e.paths.AffinityModel)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "results exported",
		slog.String("expression_csv", out.ExpressionCSV),
		slog.String("expression_xlsx", out.ExpressionXLSX),
		slog.String("diagnostics", out.Diagnostics),
		slog.String("affinity_model", out.AffinityModel))
	return &out, nil
}

func expressionHeaders(expr *summarize.Expression) []string {
	return append([]string{"probeset"}, expr.Chips...)
}

// ExportCSV streams a probeset by chip matrix to path
func (e *ExpressionExporter) ExportCSV(expr *summarize.Expression, path string) error {
	sw, err := e.csvWriter.CreateStreamWriter(path, expressionHeaders(expr))
	if err != nil {
		return fmt.Errorf("failed to export expression csv: %w", err)
	}

	row := make([]string, len(expr.Chips)+1)
	for i, name := range expr.Probesets {
		row[0] = name
		for j, v := range expr.Values[i] {
			row[j+1] = formatFloat(v)
		}
		if err := sw.WriteRecord(row); err != nil {
			sw.Close()
			return apperrors.NewStorageError(fmt.Sprintf("failed to write probeset %s", name), err).WithContext("path", path)
		}
	}
	if err := sw.Close(); err != nil {
		return apperrors.NewStorageError("failed to flush expression csv", err).WithContext("path", path)
	}
	return nil
}

// ExportXLSX writes the expression matrix and, when present, the diagnostics
// lines to a workbook.
func (e *ExpressionExporter) ExportXLSX(expr *summarize.Expression, diagnostics []string, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetExpression); err != nil {
		return apperrors.NewStorageError("failed to name worksheet", err)
	}
	sw, err := f.NewStreamWriter(SheetExpression)
	if err != nil {
		return apperrors.NewStorageError("failed to open worksheet stream", err)
	}

	header := make([]interface{}, 0, len(expr.Chips)+1)
	for _, h := range expressionHeaders(expr) {
		header = append(header, h)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return apperrors.NewStorageError("failed to write header row", err)
	}
	for i, name := range expr.Probesets {
		row := make([]interface{}, 0, len(expr.Chips)+1)
		row = append(row, name)
		for _, v := range expr.Values[i] {
			row = append(row, cellValue(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.NewStorageError("invalid cell reference", err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write row %d", i+2), err)
		}
	}
	if err := sw.Flush(); err != nil {
		return apperrors.NewStorageError("failed to flush worksheet", err)
	}

	if len(diagnostics) > 0 {
		if _, err := f.NewSheet(SheetDiagnostics); err != nil {
			return apperrors.NewStorageError("failed to add diagnostics sheet", err)
		}
		for i, line := range diagnostics {
			fields := strings.Split(line, "\t")
			row := make([]interface{}, len(fields))
			for k, v := range fields {
				row[k] = v
			}
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(SheetDiagnostics, cell, &row); err != nil {
				return apperrors.NewStorageError("failed to write diagnostics row", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err)
	}
	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}
	e.logger.Debug("workbook written", slog.String("path", path), slog.Int("probesets", len(expr.Probesets)))
	return nil
}

// ExportDiagnostics writes one tab separated diagnostics line per chip
func (e *ExpressionExporter) ExportDiagnostics(lines []string, path string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return e.files.WriteFile(path, []byte(b.String()))
}
