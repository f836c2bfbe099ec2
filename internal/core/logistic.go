package core

import (
	"fmt"
	"math"
	"math/rand"
)

// LogisticRegression is a binary classifier trained with stochastic gradient
// descent over log loss. Predict returns the positive-class probability.
type LogisticRegression struct {
	Weights []float64
	Bias    float64
}

func (m *LogisticRegression) Fit(features [][]float64, labels []float64, opts FitOptions) error {
	if len(features) == 0 {
		return fmt.Errorf("cannot fit logistic regression on empty dataset")
	}
	if len(labels) != len(features) {
		return fmt.Errorf("label count %d does not match row count %d", len(labels), len(features))
	}

	dim := len(features[0])
	m.Weights = make([]float64, dim)
	m.Bias = 0

	rng := rand.New(rand.NewSource(opts.Seed))
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, idx := range order {
			row := features[idx]
			grad := m.Predict(row) - labels[idx]

			for i, v := range row {
				m.Weights[i] -= opts.LearningRate * grad * v
			}
			m.Bias -= opts.LearningRate * grad
		}
	}

	return nil
}

func (m *LogisticRegression) Predict(features []float64) float64 {
	z := m.Bias
	for i, v := range features {
		z += m.Weights[i] * v
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
