package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"affynorm/internal/chipset"
	apperrors "affynorm/internal/errors"
)

// Format is a probe matrix encoding
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the format from a file extension. .txt and .tsv are
// tab separated.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt", ".tab":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", apperrors.NewParsingError(fmt.Sprintf("unsupported probe matrix extension %q", filepath.Ext(path)), nil)
	}
}

// Report summarizes what a load produced
type Report struct {
	Origin    string
	Chips     []string
	Probes    int
	Probesets int
	SpikeIns  int
	// Excluded counts the requested exclusions that name a known probeset.
	Excluded int
	Mismatch bool
	// BadCells counts unparsable or non-finite intensities.
	BadCells int
	// Corrupt lists chips with at least one bad cell.
	Corrupt []string
}

// Loader reads probe matrices into chipsets
type Loader struct {
	logger *slog.Logger
	// Sheet selects the XLSX worksheet. Empty means the first sheet.
	Sheet string
	// Exclude names probesets kept out of training and scaling.
	Exclude []string
}

// New creates a loader
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With(slog.String("component", "loader"))}
}

// Load opens path and parses it in the format implied by its extension
func (l *Loader) Load(ctx context.Context, path string) (*chipset.Chipset, *Report, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("probe matrix %s", path))
		}
		return nil, nil, apperrors.NewStorageError("failed to open probe matrix", err).WithContext("path", path)
	}
	defer f.Close()

	return l.Read(ctx, f, format, filepath.Base(path))
}

// Read parses a probe matrix from r. origin is recorded on every chip.
func (l *Loader) Read(ctx context.Context, r io.Reader, format Format, origin string) (*chipset.Chipset, *Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatTSV:
		rows, err = readTSV(r)
	case FormatXLSX:
		rows, err = l.readXLSX(r)
	default:
		return nil, nil, apperrors.NewParsingError(fmt.Sprintf("unknown format %q", format), nil)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, apperrors.NewParsingError("probe matrix is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	cs, report, err := build(rows[0], rows[1:], 2, origin, l.Exclude)
	if err != nil {
		return nil, nil, err
	}

	l.logger.InfoContext(ctx, "probe matrix loaded",
		slog.String("origin", origin),
		slog.String("format", string(format)),
		slog.Int("chips", len(report.Chips)),
		slog.Int("probes", report.Probes),
		slog.Int("probesets", report.Probesets),
		slog.Bool("mismatch", report.Mismatch))
	if report.BadCells > 0 {
		l.logger.WarnContext(ctx, "unparsable intensities masked",
			slog.Int("cells", report.BadCells),
			slog.Any("chips", report.Corrupt))
	}
	return cs, report, nil
}

func readTSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read tab separated probe matrix", err)
	}
	return rows, nil
}

func (l *Loader) readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()

	sheet := l.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParsingError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	l.logger.Debug("worksheet selected", slog.String("sheet", sheet), slog.Int("rows", len(rows)))
	return rows, nil
}
