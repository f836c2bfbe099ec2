package core

import (
	"fmt"
	"math"
)

// ZScoreDetector is an unsupervised anomaly scorer. It records per-feature
// mean and standard deviation at fit time; the score of a vector is its mean
// absolute z-score squashed into [0, 1), so unremarkable rows score near 0
// and extreme outliers approach 1.
type ZScoreDetector struct {
	Mean []float64
	Std  []float64
}

func (m *ZScoreDetector) Fit(features [][]float64, labels []float64, opts FitOptions) error {
	if len(features) == 0 {
		return fmt.Errorf("cannot fit anomaly detector on empty dataset")
	}
	if labels != nil {
		return fmt.Errorf("anomaly detector is unsupervised, labels must be nil")
	}

	dim := len(features[0])
	m.Mean = make([]float64, dim)
	m.Std = make([]float64, dim)

	n := float64(len(features))
	for _, row := range features {
		for i, v := range row {
			m.Mean[i] += v
		}
	}
	for i := range m.Mean {
		m.Mean[i] /= n
	}

	for _, row := range features {
		for i, v := range row {
			d := v - m.Mean[i]
			m.Std[i] += d * d
		}
	}
	for i := range m.Std {
		m.Std[i] = math.Sqrt(m.Std[i] / n)
		if m.Std[i] == 0 {
			m.Std[i] = 1
		}
	}

	return nil
}

func (m *ZScoreDetector) Predict(features []float64) float64 {
	if len(m.Mean) == 0 {
		return 0
	}

	var total float64
	for i, v := range features {
		total += math.Abs(v-m.Mean[i]) / m.Std[i]
	}
	meanZ := total / float64(len(features))

	return 1 - math.Exp(-meanZ)
}
