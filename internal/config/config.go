package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// TaskParams are the per-task fit parameters.
type TaskParams struct {
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
}

// Config is the externalized pipeline configuration, loaded from YAML so
// parameters can change across environments without code edits.
type Config struct {
	Data struct {
		RawDir                 string  `yaml:"raw_dir"`
		InterimDir             string  `yaml:"interim_dir"`
		ProcessedDir           string  `yaml:"processed_dir"`
		ArtifactDir            string  `yaml:"artifact_dir"`
		HighUtilizerPercentile float64 `yaml:"high_utilizer_percentile"`
	} `yaml:"data"`

	Training struct {
		Seed            int64                 `yaml:"seed"`
		ValidationRatio float64               `yaml:"validation_ratio"`
		Tasks           map[string]TaskParams `yaml:"tasks"`
	} `yaml:"training"`

	Business struct {
		ChurnCostPerMember float64 `yaml:"churn_cost_per_member"`
	} `yaml:"business"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Data.RawDir = "data/raw"
	cfg.Data.InterimDir = "data/interim"
	cfg.Data.ProcessedDir = "data/processed"
	cfg.Data.ArtifactDir = "artifacts"
	cfg.Data.HighUtilizerPercentile = 0.8
	cfg.Training.Seed = 42
	cfg.Training.ValidationRatio = 0.2
	cfg.Training.Tasks = map[string]TaskParams{}
	cfg.Business.ChurnCostPerMember = 5000
	return cfg
}

// Load reads the YAML config at path, overlaying it on defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Training.ValidationRatio < 0 || cfg.Training.ValidationRatio >= 1 {
		return nil, fmt.Errorf("invalid validation_ratio %v, must be in [0, 1)", cfg.Training.ValidationRatio)
	}
	if cfg.Data.HighUtilizerPercentile <= 0 || cfg.Data.HighUtilizerPercentile >= 1 {
		return nil, fmt.Errorf("invalid high_utilizer_percentile %v, must be in (0, 1)", cfg.Data.HighUtilizerPercentile)
	}

	return cfg, nil
}

// TaskParams returns the configured fit parameters for a task, falling back
// to conservative defaults when the task is not listed.
func (c *Config) TaskParams(task string) TaskParams {
	if p, ok := c.Training.Tasks[task]; ok {
		if p.Epochs <= 0 {
			p.Epochs = 100
		}
		if p.LearningRate <= 0 {
			p.LearningRate = 0.05
		}
		return p
	}
	return TaskParams{Epochs: 100, LearningRate: 0.05}
}
