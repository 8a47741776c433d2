// Package exporter writes normalization results to disk.
//
// CSVWriter is the low level delimited writer. ExpressionExporter writes the
// well-known run outputs named by config.Paths:
//
//   - expression.csv, a probeset by chip matrix with NA for missing values
//   - expression.xlsx, the same matrix plus a diagnostics sheet
//   - normalization_diagnostics.txt, one pairwise fit line per chip
//   - affinity_model.json, the median polish model for later reuse
//
// Example usage:
//
//	exp := exporter.NewExpressionExporter(paths, logger)
//	written, err := exp.Export(ctx, exporter.Bundle{
//		Expression:  result.Expression,
//		Model:       result.Model,
//		Diagnostics: result.DiagnosticLines(),
//	}, true)
//
// LoadAffinityModel reads a saved model back so a later run can summarize
// new chips against it.
package exporter
