package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnsureModel returns the registry row for a task, creating it in QUEUED
// state if it does not exist yet.
func EnsureModel(ctx context.Context, db *gorm.DB, task string) (*Model, error) {
	var model Model
	err := db.WithContext(ctx).
		Where(Model{Task: task}).
		Attrs(Model{
			Id:           uuid.New(),
			Status:       ModelQueued,
			CreationTime: time.Now().UTC(),
		}).
		FirstOrCreate(&model).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure model record for task %s: %w", task, err)
	}
	return &model, nil
}

func GetModel(ctx context.Context, db *gorm.DB, task string) (*Model, error) {
	var model Model
	if err := db.WithContext(ctx).First(&model, "task = ?", task).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func UpdateModelStatus(ctx context.Context, txn *gorm.DB, modelId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == ModelTrained || status == ModelFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Model{Id: modelId}).Updates(updates).Error; err != nil {
		slog.Error("error updating model status", "model_id", modelId, "status", status, "error", err)
		return err
	}
	return nil
}

func SetModelArtifact(ctx context.Context, txn *gorm.DB, modelId uuid.UUID, artifactPath string) error {
	updates := map[string]any{
		"status":          ModelTrained,
		"artifact_path":   artifactPath,
		"completion_time": time.Now().UTC(),
	}
	if err := txn.WithContext(ctx).Model(&Model{Id: modelId}).Updates(updates).Error; err != nil {
		slog.Error("error setting model artifact", "model_id", modelId, "error", err)
		return err
	}
	return nil
}

// CreateRun appends a new experiment record in QUEUED state.
func CreateRun(ctx context.Context, db *gorm.DB, modelId uuid.UUID, task string) (*TrainRun, error) {
	run := TrainRun{
		Id:           uuid.New(),
		ModelId:      modelId,
		Task:         task,
		Status:       RunQueued,
		CreationTime: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to create train run for task %s: %w", task, err)
	}
	return &run, nil
}

func UpdateRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == RunCompleted || status == RunFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&TrainRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

// CompleteRun records a successful run's parameters, metrics, and artifact
// reference. After this the row is never touched again.
func CompleteRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID, params map[string]any, metrics map[string]float64, artifactPath string) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("could not marshal run params: %w", err)
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("could not marshal run metrics: %w", err)
	}

	updates := map[string]any{
		"status":          RunCompleted,
		"params":          paramsJSON,
		"metrics":         metricsJSON,
		"artifact_path":   artifactPath,
		"completion_time": time.Now().UTC(),
	}
	if err := txn.WithContext(ctx).Model(&TrainRun{Id: runId}).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runId, err)
	}
	return nil
}

// FailRun marks a run failed with its error message.
func FailRun(ctx context.Context, txn *gorm.DB, runId uuid.UUID, runErr error) {
	updates := map[string]any{
		"status":          RunFailed,
		"error":           runErr.Error(),
		"completion_time": time.Now().UTC(),
	}
	if err := txn.WithContext(ctx).Model(&TrainRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error saving run failure", "run_id", runId, "error", err)
	}
}

// IsNotFound reports whether err is gorm's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
