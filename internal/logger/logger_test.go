package logger

import (
	"os"
	"path/filepath"
	"testing"

	"calendarcam/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewLogger(&config.Config{LogDirectory: dir})
	require.NoError(t, err)
	defer l.Close()

	l.Info("motion state %s", "active")
	l.Warning("no calendar region found")
	l.Error("capture aborted: %v", "not a quadrilateral")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "motion state active")
	assert.Contains(t, string(info), "logger_test.go")

	warning, err := os.ReadFile(l.Path(LevelWarning))
	require.NoError(t, err)
	assert.Contains(t, string(warning), "no calendar region found")
	assert.NotContains(t, string(warning), "motion state")

	errs, err := os.ReadFile(l.Path(LevelError))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "not a quadrilateral")
}

func TestCleanLogs_TruncatesOneLevel(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(&config.Config{LogDirectory: dir})
	require.NoError(t, err)
	defer l.Close()

	l.Info("first")
	l.Warning("kept")
	require.NoError(t, l.CleanLogs(LevelInfo))

	info, err := os.ReadFile(l.Path(LevelInfo))
	require.NoError(t, err)
	assert.Empty(t, info)

	warning, err := os.ReadFile(l.Path(LevelWarning))
	require.NoError(t, err)
	assert.Contains(t, string(warning), "kept")
}

func TestNewLogger_InvalidDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	l, err := NewLogger(&config.Config{LogDirectory: filepath.Join(file, "logs")})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("dropped %d", 1)
	l.Warning("dropped")
	l.Error("dropped")
	assert.NoError(t, l.CleanLogs(LevelInfo))
}
