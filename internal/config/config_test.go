package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Load()

	assert.Equal(t, 100, cfg.MotionScoreThreshold)
	assert.Equal(t, 5*time.Second, cfg.StillnessTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10000, cfg.RegionMinArea)
	assert.Equal(t, 0.5, cfg.RegionMinAspect)
	assert.Equal(t, 2.0, cfg.RegionMaxAspect)
	assert.Equal(t, "uniform", cfg.GridStrategy)
	assert.Equal(t, 6, cfg.GridRows)
	assert.Equal(t, 7, cfg.GridCols)
	assert.Equal(t, 20, cfg.RowTolerance)
	assert.Equal(t, 1, cfg.OCRWorkers)
	assert.Equal(t, 0, cfg.StatusPort)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MOTION_SCORE_THRESHOLD", "250")
	t.Setenv("STILLNESS_TIMEOUT_SECONDS", "2.5")
	t.Setenv("POLL_INTERVAL_SECONDS", "0.05")
	t.Setenv("GRID_STRATEGY", "intersection")
	t.Setenv("REGION_MAX_ASPECT", "1.75")

	cfg := Load()

	assert.Equal(t, 250, cfg.MotionScoreThreshold)
	assert.Equal(t, 2500*time.Millisecond, cfg.StillnessTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "intersection", cfg.GridStrategy)
	assert.Equal(t, 1.75, cfg.RegionMaxAspect)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GRID_ROWS", "six")
	t.Setenv("STILLNESS_TIMEOUT_SECONDS", "-3")
	t.Setenv("REGION_MIN_ASPECT", "wide")

	cfg := Load()

	assert.Equal(t, 6, cfg.GridRows)
	assert.Equal(t, 5*time.Second, cfg.StillnessTimeout)
	assert.Equal(t, 0.5, cfg.RegionMinAspect)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	os.Unsetenv("GRID_COLS")
	t.Cleanup(func() { os.Unsetenv("GRID_COLS") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GRID_COLS=5\nTEXT_ENGINE=gemini\n"), 0644))
	t.Setenv("TEXT_ENGINE", "tesseract")

	cfg := Load()

	assert.Equal(t, 5, cfg.GridCols)
	// the process environment wins over .env
	assert.Equal(t, "tesseract", cfg.TextEngine)
}

func TestConfig_OutputPaths(t *testing.T) {
	cfg := &Config{OutputDirectory: "out"}

	assert.Equal(t, filepath.Join("out", "days"), cfg.DaysDirectory())
	assert.Equal(t, filepath.Join("out", "stills"), cfg.StillsDirectory())
	assert.Equal(t, filepath.Join("out", "calendar_events.json"), cfg.RecordsPath())
}
