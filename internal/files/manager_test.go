package files

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affynorm/internal/config"
	apperrors "affynorm/internal/errors"
)

func newTestManager(t *testing.T) (*Manager, *config.Paths) {
	t.Helper()
	paths, err := config.ResolvePaths(config.PathsConfig{}, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return NewManager(paths, nil), paths
}

func TestNewManager(t *testing.T) {
	m, paths := newTestManager(t)
	assert.NotNil(t, m)
	assert.Equal(t, paths, m.paths)
	assert.NotNil(t, m.logger)
}

func TestManager_resolvePath(t *testing.T) {
	m, paths := newTestManager(t)
	abs := filepath.Join(t.TempDir(), "elsewhere", "x.txt")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare name", in: "expression.csv", want: filepath.Join(paths.OutputDir, "expression.csv")},
		{name: "output prefix", in: "output/model.json", want: filepath.Join(paths.OutputDir, "model.json")},
		{name: "reports prefix", in: "reports/diag.txt", want: filepath.Join(paths.ReportsDir, "diag.txt")},
		{name: "logs prefix", in: "logs/run.log", want: filepath.Join(paths.LogsDir, "run.log")},
		{name: "absolute", in: abs, want: abs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.resolvePath(tt.in))
		})
	}
}

func TestManager_WriteReadFile(t *testing.T) {
	m, paths := newTestManager(t)

	require.NoError(t, m.WriteFile("reports/diag.txt", []byte("first")))
	require.NoError(t, m.WriteFile("reports/diag.txt", []byte("second")))

	data, err := m.ReadFile("reports/diag.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.True(t, m.FileExists("reports/diag.txt"))

	info, err := os.Stat(filepath.Join(paths.ReportsDir, "diag.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestManager_ReadFileMissing(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.ReadFile("absent.csv")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	assert.False(t, m.FileExists("absent.csv"))
}

func TestManager_ListFiles(t *testing.T) {
	m, paths := newTestManager(t)

	require.NoError(t, m.WriteFile("a.csv", []byte("a")))
	require.NoError(t, m.WriteFile("b.json", []byte("b")))
	require.NoError(t, os.WriteFile(filepath.Join(paths.OutputDir, "c.json.123.tmp"), []byte("partial"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(paths.OutputDir, "sub"), 0o755))

	names, err := m.ListFiles("output/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.csv", "b.json"}, names)

	_, err = m.ListFiles(filepath.Join(paths.BaseDir, "missing"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestWriteAtomic(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a", "b", "model.json")
		require.NoError(t, WriteAtomic(path, []byte("{}")))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("parent is a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		err := WriteAtomic(filepath.Join(blocker, "model.json"), []byte("{}"))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shared.txt")
		payloads := []string{"alpha", "bravo", "charlie", "delta"}

		var wg sync.WaitGroup
		for _, p := range payloads {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				assert.NoError(t, WriteAtomic(path, []byte(p)))
			}(p)
		}
		wg.Wait()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, payloads, string(data))
	})
}
