// Package worker consumes queued training tasks and executes them through
// the pipeline runner.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"payer-analytics/internal/core"
	"payer-analytics/internal/messaging"
	"payer-analytics/internal/pipeline"
	"payer-analytics/internal/storage"
)

type TaskProcessor struct {
	runner   *pipeline.Runner
	receiver messaging.Receiver
}

func NewTaskProcessor(runner *pipeline.Runner, receiver messaging.Receiver) *TaskProcessor {
	return &TaskProcessor{
		runner:   runner,
		receiver: receiver,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.receiver.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.receiver.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.TrainingQueue:
		var payload messaging.TrainTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling train task", "error", err)
			if err := task.Reject(); err != nil { // Discard malformed message
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processTrainTask(ctx, payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processTrainTask(ctx context.Context, payload messaging.TrainTaskPayload) error {
	slog.Info("handling train task", "run_id", payload.RunId, "task", payload.Task)

	task, err := core.ParseTask(payload.Task)
	if err != nil {
		return err
	}

	// A remote worker pulls the latest interim tables before building
	// features so it trains on the same data the ingest stage published.
	if proc.runner.Store != nil {
		if err := proc.runner.Store.DownloadDir(ctx, storage.DatasetBucket, storage.InterimPrefix, proc.runner.Cfg.Data.InterimDir, true); err != nil {
			return err
		}
	}

	if _, err := proc.runner.BuildFeatures(ctx, task); err != nil {
		return err
	}

	overrides := &pipeline.TrainOverrides{
		Seed:            payload.Seed,
		ValidationRatio: payload.ValidationRatio,
		Epochs:          payload.Epochs,
		LearningRate:    payload.LearningRate,
	}

	result, err := proc.runner.ExecuteRun(ctx, payload.RunId, payload.ModelId, task, overrides)
	if err != nil {
		// The run row already records the failure; the task itself succeeded
		// at reporting it, so only training infrastructure errors propagate.
		slog.Warn("training run failed", "run_id", payload.RunId, "task", payload.Task, "error", err)
		return nil
	}

	slog.Info("training run completed", "run_id", payload.RunId, "task", payload.Task, "metrics", result.Metrics)
	return nil
}
