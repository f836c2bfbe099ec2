package core

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArtifactFile is the file name of a serialized pipeline within its
// task/run directory.
const ArtifactFile = "model.bin"

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&LinearRegression{})
	gob.Register(&ZScoreDetector{})
}

// ArtifactLoadError reports a pipeline artifact that could not be located or
// deserialized.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("failed to load pipeline artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// Pipeline is the trained preprocessing + estimator bundle persisted as one
// opaque artifact. It is immutable after training; retraining produces a new
// artifact file rather than mutating this one.
type Pipeline struct {
	Task         Task
	RunId        uuid.UUID
	FeatureNames []string
	Scaler       *StandardScaler
	Estimator    Estimator
	TrainedAt    time.Time
}

// Predict scales the feature vector and applies the estimator. The vector
// must follow FeatureNames order.
func (p *Pipeline) Predict(features []float64) (float64, error) {
	if len(features) != len(p.FeatureNames) {
		return 0, fmt.Errorf("expected %d features for task %s, got %d", len(p.FeatureNames), p.Task, len(features))
	}
	return p.Estimator.Predict(p.Scaler.Transform(features)), nil
}

// Save serializes the pipeline to path. The artifact is written to a
// temporary file and renamed so a failed save never leaves a partial
// artifact behind.
func (p *Pipeline) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create artifact directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(p); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to serialize pipeline for task %s: %w", p.Task, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp artifact file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place at %s: %w", path, err)
	}

	return nil
}

// LoadPipeline deserializes a pipeline artifact from path.
func LoadPipeline(path string) (*Pipeline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	defer file.Close()

	var p Pipeline
	if err := gob.NewDecoder(file).Decode(&p); err != nil {
		return nil, &ArtifactLoadError{Path: path, Err: err}
	}
	if p.Estimator == nil || p.Scaler == nil {
		return nil, &ArtifactLoadError{Path: path, Err: fmt.Errorf("artifact is missing estimator or scaler")}
	}

	return &p, nil
}
