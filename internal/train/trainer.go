package train

import (
	"fmt"
	"log/slog"
	"time"

	"payer-analytics/internal/core"
	"payer-analytics/internal/features"

	"github.com/google/uuid"
)

// MinTrainRows is the smallest feature table a trainer will accept.
const MinTrainRows = 10

// TrainingError reports degenerate or insufficient training data.
type TrainingError struct {
	Task   core.Task
	Reason string
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed for task %s: %s", e.Task, e.Reason)
}

// Options are the externally configured split and fit parameters.
type Options struct {
	ValidationRatio float64
	Seed            int64
	Epochs          int
	LearningRate    float64
}

// Result bundles the trained pipeline with the experiment record contents.
type Result struct {
	Pipeline       *core.Pipeline
	Params         map[string]any
	Metrics        map[string]float64
	TrainRows      int
	ValidationRows int
}

// Run fits the task's estimator on the feature table and evaluates it on the
// held-out partition. It never writes anything; artifact persistence is the
// caller's concern so a failed run cannot leave a partial artifact.
func Run(task core.Task, ft *features.FeatureTable, opts Options) (*Result, error) {
	if ft.Task != task {
		return nil, &TrainingError{Task: task, Reason: fmt.Sprintf("feature table belongs to task %s", ft.Task)}
	}
	if ft.NumRows() < MinTrainRows {
		return nil, &TrainingError{Task: task, Reason: fmt.Sprintf("insufficient rows: have %d, need at least %d", ft.NumRows(), MinTrainRows)}
	}

	supervised := ft.Label != ""
	if task.IsClassification() {
		if err := checkBothClasses(task, ft.Labels); err != nil {
			return nil, err
		}
	}

	trainIdx, valIdx := Split(ft.NumRows(), opts.ValidationRatio, opts.Seed)

	trainX := gather(ft.Rows, trainIdx)
	valX := gather(ft.Rows, valIdx)

	var trainY, valY []float64
	if supervised {
		trainY = gatherValues(ft.Labels, trainIdx)
		valY = gatherValues(ft.Labels, valIdx)
	}

	scaler := &core.StandardScaler{}
	if err := scaler.Fit(trainX); err != nil {
		return nil, &TrainingError{Task: task, Reason: err.Error()}
	}
	scaledTrain := scaler.TransformAll(trainX)
	scaledVal := scaler.TransformAll(valX)

	estimator := newEstimator(task)
	fitOpts := core.FitOptions{Epochs: opts.Epochs, LearningRate: opts.LearningRate, Seed: opts.Seed}
	if err := estimator.Fit(scaledTrain, trainY, fitOpts); err != nil {
		return nil, &TrainingError{Task: task, Reason: err.Error()}
	}

	pipeline := &core.Pipeline{
		Task:         task,
		RunId:        uuid.New(),
		FeatureNames: ft.Columns,
		Scaler:       scaler,
		Estimator:    estimator,
		TrainedAt:    time.Now().UTC(),
	}

	metrics := evaluate(task, estimator, scaledTrain, trainY, scaledVal, valY)

	slog.Info("training complete", "task", task, "run_id", pipeline.RunId,
		"train_rows", len(trainIdx), "validation_rows", len(valIdx), "metrics", metrics)

	return &Result{
		Pipeline: pipeline,
		Params: map[string]any{
			"validation_ratio": opts.ValidationRatio,
			"seed":             opts.Seed,
			"epochs":           opts.Epochs,
			"learning_rate":    opts.LearningRate,
			"estimator":        estimatorName(task),
			"features":         ft.Columns,
		},
		Metrics:        metrics,
		TrainRows:      len(trainIdx),
		ValidationRows: len(valIdx),
	}, nil
}

func newEstimator(task core.Task) core.Estimator {
	switch task {
	case core.TaskChurn, core.TaskRisk:
		return &core.LogisticRegression{}
	case core.TaskCost:
		return &core.LinearRegression{}
	default:
		return &core.ZScoreDetector{}
	}
}

func estimatorName(task core.Task) string {
	switch task {
	case core.TaskChurn, core.TaskRisk:
		return "logistic_regression"
	case core.TaskCost:
		return "linear_regression"
	default:
		return "zscore_anomaly"
	}
}

func evaluate(task core.Task, estimator core.Estimator, scaledTrain [][]float64, trainY []float64, scaledVal [][]float64, valY []float64) map[string]float64 {
	// Fall back to the training partition when the validation split is empty
	// (tiny datasets with a 0 ratio).
	evalX, evalY := scaledVal, valY
	if len(evalX) == 0 {
		evalX, evalY = scaledTrain, trainY
	}

	predictions := make([]float64, len(evalX))
	for i, row := range evalX {
		predictions[i] = estimator.Predict(row)
	}

	switch task {
	case core.TaskChurn, core.TaskRisk:
		return map[string]float64{
			"auc":      core.AUC(predictions, evalY),
			"accuracy": core.Accuracy(predictions, evalY),
		}
	case core.TaskCost:
		return map[string]float64{
			"rmse": core.RMSE(predictions, evalY),
			"mae":  core.MAE(predictions, evalY),
		}
	default:
		return map[string]float64{
			"mean_score": core.Mean(predictions),
			"max_score":  core.Max(predictions),
		}
	}
}

func checkBothClasses(task core.Task, labels []float64) error {
	var positives int
	for _, l := range labels {
		if l == 1 {
			positives++
		}
	}
	if positives == 0 || positives == len(labels) {
		return &TrainingError{Task: task, Reason: "labels contain a single class"}
	}
	return nil
}

func gather(rows [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

func gatherValues(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
