package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"payer-analytics/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/raw", cfg.Data.RawDir)
	assert.Equal(t, 0.8, cfg.Data.HighUtilizerPercentile)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 0.2, cfg.Training.ValidationRatio)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
data:
  raw_dir: /mnt/claims/raw
  high_utilizer_percentile: 0.9
training:
  seed: 7
  tasks:
    churn:
      epochs: 250
      learning_rate: 0.2
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/claims/raw", cfg.Data.RawDir)
	assert.Equal(t, 0.9, cfg.Data.HighUtilizerPercentile)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	// Unset keys keep their defaults.
	assert.Equal(t, "data/interim", cfg.Data.InterimDir)
	assert.Equal(t, 0.2, cfg.Training.ValidationRatio)

	churn := cfg.TaskParams("churn")
	assert.Equal(t, 250, churn.Epochs)
	assert.Equal(t, 0.2, churn.LearningRate)
}

func TestTaskParamsFallback(t *testing.T) {
	cfg := config.Default()

	params := cfg.TaskParams("fraud")
	assert.Equal(t, 100, params.Epochs)
	assert.Equal(t, 0.05, params.LearningRate)

	// Zero values in a listed task also fall back.
	cfg.Training.Tasks["fraud"] = config.TaskParams{Epochs: 1}
	params = cfg.TaskParams("fraud")
	assert.Equal(t, 1, params.Epochs)
	assert.Equal(t, 0.05, params.LearningRate)
}

func TestLoadInvalidValidationRatio(t *testing.T) {
	path := writeConfig(t, "training:\n  validation_ratio: 1.0\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation_ratio")
}

func TestLoadInvalidPercentile(t *testing.T) {
	path := writeConfig(t, "data:\n  high_utilizer_percentile: 1.5\n")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "high_utilizer_percentile")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
