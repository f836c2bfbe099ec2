package core

import (
	"fmt"
	"math"
	"math/rand"
)

// LinearRegression is trained with stochastic gradient descent over squared
// error. Targets are standardized internally so the learning rate behaves the
// same across tasks with very different target scales (claim dollars vs.
// probabilities); predictions are mapped back to the original scale.
type LinearRegression struct {
	Weights []float64
	Bias    float64

	TargetMean float64
	TargetStd  float64
}

func (m *LinearRegression) Fit(features [][]float64, labels []float64, opts FitOptions) error {
	if len(features) == 0 {
		return fmt.Errorf("cannot fit linear regression on empty dataset")
	}
	if len(labels) != len(features) {
		return fmt.Errorf("label count %d does not match row count %d", len(labels), len(features))
	}

	m.TargetMean, m.TargetStd = meanStd(labels)
	if m.TargetStd == 0 {
		m.TargetStd = 1
	}

	scaled := make([]float64, len(labels))
	for i, y := range labels {
		scaled[i] = (y - m.TargetMean) / m.TargetStd
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

			pred := m.Bias
			for i, v := range row {
				pred += m.Weights[i] * v
			}
			grad := pred - scaled[idx]

			for i, v := range row {
				m.Weights[i] -= opts.LearningRate * grad * v
			}
			m.Bias -= opts.LearningRate * grad
		}
	}

	return nil
}

func (m *LinearRegression) Predict(features []float64) float64 {
	pred := m.Bias
	for i, v := range features {
		pred += m.Weights[i] * v
	}
	return pred*m.TargetStd + m.TargetMean
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}

	return mean, math.Sqrt(variance / float64(len(values)))
}
