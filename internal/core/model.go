package core

import "fmt"

// Task identifies one of the four prediction tasks.
type Task string

const (
	TaskChurn Task = "churn"
	TaskCost  Task = "cost"
	TaskRisk  Task = "risk"
	TaskFraud Task = "fraud"
)

func AllTasks() []Task {
	return []Task{TaskChurn, TaskCost, TaskRisk, TaskFraud}
}

func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case TaskChurn, TaskCost, TaskRisk, TaskFraud:
		return Task(s), nil
	default:
		return "", fmt.Errorf("unknown task %q, expected one of churn, cost, risk, fraud", s)
	}
}

// IsClassification reports whether the task's estimator emits a probability.
func (t Task) IsClassification() bool {
	return t == TaskChurn || t == TaskRisk
}

// FitOptions carry the externally configured training parameters. The seed
// fixes all declared randomness; two fits with identical data and options
// produce identical estimators.
type FitOptions struct {
	Epochs       int
	LearningRate float64
	Seed         int64
}

// Estimator is a trainable model over fixed-width feature vectors. Labels are
// nil for unsupervised estimators.
type Estimator interface {
	Fit(features [][]float64, labels []float64, opts FitOptions) error

	Predict(features []float64) float64
}
