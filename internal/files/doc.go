// Package files writes and resolves run outputs below the configured output,
// reports and logs directories.
//
// Writes go to a temporary sibling first and are renamed into place, so a
// reader never observes a half written expression matrix, diagnostics file
// or affinity model.
//
// Example usage:
//
//	manager := files.NewManager(paths, logger)
//	if err := manager.WriteFile("reports/normalization_diagnostics.txt", data); err != nil {
//	    return err
//	}
package files
