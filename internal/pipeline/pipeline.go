// Package pipeline chains the per-task stages (ingest, feature build, train)
// over file-based handoffs and records each training run in the tracking
// store. The CLI and the queue worker both drive it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"payer-analytics/internal/config"
	"payer-analytics/internal/core"
	"payer-analytics/internal/database"
	"payer-analytics/internal/dataset"
	"payer-analytics/internal/features"
	"payer-analytics/internal/storage"
	"payer-analytics/internal/train"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrainOverrides optionally replace the configured training parameters for a
// single run (e.g. a retrain submitted through the API).
type TrainOverrides struct {
	Seed            *int64
	ValidationRatio *float64
	Epochs          *int
	LearningRate    *float64
}

type Runner struct {
	DB  *gorm.DB
	Cfg *config.Config

	// Store, when set, receives a copy of every artifact under the models
	// bucket so a separately deployed serving tier can fetch it.
	Store storage.Provider
}

// Ingest runs the raw → interim stage.
func (r *Runner) Ingest(ctx context.Context) error {
	interim, err := dataset.Ingest(r.Cfg.Data.RawDir)
	if err != nil {
		return err
	}
	if err := interim.Write(r.Cfg.Data.InterimDir); err != nil {
		return err
	}

	if r.Store != nil {
		if err := r.Store.UploadDir(ctx, storage.DatasetBucket, storage.InterimPrefix, r.Cfg.Data.InterimDir); err != nil {
			return err
		}
	}

	slog.Info("interim tables written", "dir", r.Cfg.Data.InterimDir)
	return nil
}

// FeatureTablePath returns where a task's feature table lives on disk.
func (r *Runner) FeatureTablePath(task core.Task) string {
	return filepath.Join(r.Cfg.Data.ProcessedDir, string(task)+".csv")
}

// ArtifactPath returns the swap target for a task's current artifact.
func (r *Runner) ArtifactPath(task core.Task) string {
	return filepath.Join(r.Cfg.Data.ArtifactDir, string(task), core.ArtifactFile)
}

// BuildFeatures runs the interim → feature-table stage for one task.
func (r *Runner) BuildFeatures(ctx context.Context, task core.Task) (*features.FeatureTable, error) {
	interim, err := dataset.LoadInterim(r.Cfg.Data.InterimDir)
	if err != nil {
		return nil, err
	}

	ft, err := features.Build(task, interim, features.Params{
		HighUtilizerPercentile: r.Cfg.Data.HighUtilizerPercentile,
	})
	if err != nil {
		return nil, err
	}

	path := r.FeatureTablePath(task)
	if err := ft.WriteCSV(path); err != nil {
		return nil, err
	}

	slog.Info("feature table written", "task", task, "path", path, "rows", ft.NumRows())
	return ft, nil
}

// Train runs the full train stage for a task: creates the experiment record,
// fits on the processed feature table, persists the artifact, and completes
// the record. It returns the run id even on failure so callers can report it.
func (r *Runner) Train(ctx context.Context, task core.Task, overrides *TrainOverrides) (uuid.UUID, *train.Result, error) {
	model, err := database.EnsureModel(ctx, r.DB, string(task))
	if err != nil {
		return uuid.Nil, nil, err
	}

	run, err := database.CreateRun(ctx, r.DB, model.Id, string(task))
	if err != nil {
		return uuid.Nil, nil, err
	}

	result, err := r.ExecuteRun(ctx, run.Id, model.Id, task, overrides)
	return run.Id, result, err
}

// ExecuteRun performs a training run that already has its experiment record;
// the queue worker calls this directly with the queued run's ids.
func (r *Runner) ExecuteRun(ctx context.Context, runId, modelId uuid.UUID, task core.Task, overrides *TrainOverrides) (*train.Result, error) {
	if err := database.UpdateRunStatus(ctx, r.DB, runId, database.RunRunning); err != nil {
		slog.Warn("failed to mark run as running", "run_id", runId, "error", err)
	}
	if err := database.UpdateModelStatus(ctx, r.DB, modelId, database.ModelTraining); err != nil {
		slog.Warn("failed to mark model as training", "model_id", modelId, "error", err)
	}

	result, artifactPath, err := r.executeRun(ctx, runId, task, overrides)
	if err != nil {
		database.FailRun(ctx, r.DB, runId, err)
		if dbErr := database.UpdateModelStatus(ctx, r.DB, modelId, database.ModelFailed); dbErr != nil {
			slog.Warn("failed to mark model as failed", "model_id", modelId, "error", dbErr)
		}
		return nil, err
	}

	if err := database.CompleteRun(ctx, r.DB, runId, result.Params, result.Metrics, artifactPath); err != nil {
		return nil, err
	}
	if err := database.SetModelArtifact(ctx, r.DB, modelId, artifactPath); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Runner) executeRun(ctx context.Context, runId uuid.UUID, task core.Task, overrides *TrainOverrides) (*train.Result, string, error) {
	ft, err := features.LoadFeatureTable(r.FeatureTablePath(task), task)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("no feature table for task %s, run the features stage first: %w", task, err)
		}
		return nil, "", err
	}

	opts := r.trainOptions(task, overrides)
	result, err := train.Run(task, ft, opts)
	if err != nil {
		return nil, "", err
	}
	result.Pipeline.RunId = runId

	// Churn runs carry the business rollup: expected revenue at risk over the
	// full labeled population, priced at the configured cost per member.
	if task == core.TaskChurn {
		churnRate := core.Mean(ft.Labels)
		result.Metrics["churn_rate"] = churnRate
		result.Metrics["revenue_risk"] = churnRate * float64(ft.NumRows()) * r.Cfg.Business.ChurnCostPerMember
	}

	// One immutable artifact per run plus the swap target the service loads.
	runArtifact := filepath.Join(r.Cfg.Data.ArtifactDir, string(task), runId.String(), core.ArtifactFile)
	if err := result.Pipeline.Save(runArtifact); err != nil {
		return nil, "", err
	}
	if err := result.Pipeline.Save(r.ArtifactPath(task)); err != nil {
		return nil, "", err
	}

	artifactPath := runArtifact
	if r.Store != nil {
		key := fmt.Sprintf("%s/%s/%s", task, runId, core.ArtifactFile)
		if err := r.uploadArtifact(ctx, runArtifact, key); err != nil {
			return nil, "", err
		}
		if err := r.uploadArtifact(ctx, runArtifact, fmt.Sprintf("%s/%s", task, core.ArtifactFile)); err != nil {
			return nil, "", err
		}
		artifactPath = key
	}

	return result, artifactPath, nil
}

func (r *Runner) uploadArtifact(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s for upload: %w", localPath, err)
	}
	defer file.Close()

	if err := r.Store.PutObject(ctx, storage.ModelBucket, key, file); err != nil {
		return err
	}
	return nil
}

func (r *Runner) trainOptions(task core.Task, overrides *TrainOverrides) train.Options {
	params := r.Cfg.TaskParams(string(task))
	opts := train.Options{
		ValidationRatio: r.Cfg.Training.ValidationRatio,
		Seed:            r.Cfg.Training.Seed,
		Epochs:          params.Epochs,
		LearningRate:    params.LearningRate,
	}

	if overrides == nil {
		return opts
	}
	if overrides.Seed != nil {
		opts.Seed = *overrides.Seed
	}
	if overrides.ValidationRatio != nil {
		opts.ValidationRatio = *overrides.ValidationRatio
	}
	if overrides.Epochs != nil {
		opts.Epochs = *overrides.Epochs
	}
	if overrides.LearningRate != nil {
		opts.LearningRate = *overrides.LearningRate
	}
	return opts
}

// Clean removes all generated data: interim tables, feature tables, and
// artifacts. Raw data is untouched.
func (r *Runner) Clean() error {
	for _, dir := range []string{r.Cfg.Data.InterimDir, r.Cfg.Data.ProcessedDir, r.Cfg.Data.ArtifactDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	return nil
}
