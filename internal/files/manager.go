package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
)

// Manager resolves relative output names and writes files atomically
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger}
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath := m.resolvePath(path)
	_, err := os.Stat(fullPath)
	exists := err == nil

	m.logger.Debug("file exists check",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Bool("exists", exists))
	return exists
}

// ReadFile reads the entire content of a file
func (m *Manager) ReadFile(path string) ([]byte, error) {
	fullPath := m.resolvePath(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("file %s", fullPath))
		}
		return nil, apperrors.NewStorageError("failed to read file", err).WithContext("path", fullPath)
	}
	return data, nil
}

// WriteFile atomically replaces path with data
func (m *Manager) WriteFile(path string, data []byte) error {
	fullPath := m.resolvePath(path)

	m.logger.Debug("writing file",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Int("size_bytes", len(data)))
	return WriteAtomic(fullPath, data)
}

// ListFiles returns the regular files of a directory (non-recursive)
func (m *Manager) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(m.resolvePath(dir))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list directory", err).WithContext("path", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasSuffix(entry.Name(), tmpSuffix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// resolvePath maps "reports/", "logs/" and "output/" prefixes onto the
// configured directories. Other relative paths land in the output directory.
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	switch {
	case strings.HasPrefix(path, "reports/"):
		return m.paths.GetReportPath(strings.TrimPrefix(path, "reports/"))
	case strings.HasPrefix(path, "logs/"):
		return m.paths.GetLogPath(strings.TrimPrefix(path, "logs/"))
	case strings.HasPrefix(path, "output/"):
		return m.paths.GetOutputPath(strings.TrimPrefix(path, "output/"))
	default:
		return m.paths.GetOutputPath(path)
	}
}

const tmpSuffix = ".tmp"

// WriteAtomic writes data to a temporary sibling of path and renames it over
// path. The parent directory is created if needed.
func WriteAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*"+tmpSuffix)
	if err != nil {
		return apperrors.NewStorageError("failed to create temporary file", err).WithContext("path", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write file", err).WithContext("path", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close file", err).WithContext("path", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to set file mode", err).WithContext("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to replace file", err).WithContext("path", path)
	}
	return nil
}
