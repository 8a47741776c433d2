package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "affynorm/internal/errors"
)

// Extensions accepted for probe matrices and affinity models
var (
	MatrixExtensions = []string{".tsv", ".txt", ".xlsx"}
	ModelExtensions  = []string{".json"}
)

// FileValidator checks input files and output directories before a run
// touches them, so failures surface with the offending path.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks that path is an existing, readable, regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("file does not exist", slog.String("file", path))
		return apperrors.NewNotFoundError(fmt.Sprintf("file %s", path))
	}
	if err != nil {
		return apperrors.NewStorageError("failed to stat file", err).WithContext("path", path)
	}
	if info.IsDir() {
		v.logger.Error("path is a directory, not a file", slog.String("path", path))
		return apperrors.NewValidationError(fmt.Sprintf("%s is a directory, not a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("file is not readable", err).WithContext("path", path)
	}
	file.Close()

	v.logger.Debug("file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateProbeMatrix checks a probe matrix before loading: it must be a
// non-empty readable file with a matrix extension and must not be an Excel
// lock file.
func (v *FileValidator) ValidateProbeMatrix(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	if err := v.checkExtension(path, MatrixExtensions); err != nil {
		return err
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("refusing temporary Excel file", slog.String("file", path))
		return apperrors.NewValidationError(fmt.Sprintf("file %s is a temporary Excel file", path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewStorageError("failed to stat file", err).WithContext("path", path)
	}
	if info.Size() == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("probe matrix %s is empty", path))
	}
	return nil
}

// ValidateModelFile checks an affinity model file before decoding it
func (v *FileValidator) ValidateModelFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	return v.checkExtension(path, ModelExtensions)
}

func (v *FileValidator) checkExtension(path string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	v.logger.Error("unsupported file extension",
		slog.String("file", path),
		slog.String("extension", ext))
	return apperrors.NewValidationError(
		fmt.Sprintf("file %s has unsupported extension %q (want one of %s)", path, ext, strings.Join(allowed, ", ")))
}

// ValidateOutputDirectory creates dir if needed and checks it is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("failed to create output directory", err).WithContext("path", dir)
	}
	return v.CheckWritable(dir)
}

// CheckWritable verifies that a file can be created in dir without creating
// dir itself.
func (v *FileValidator) CheckWritable(dir string) error {
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Warn("directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("directory is not writable", err).WithContext("path", dir)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("directory is writable", slog.String("directory", dir))
	return nil
}
