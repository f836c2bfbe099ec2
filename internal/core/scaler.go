package core

import (
	"fmt"
	"math"
)

// StandardScaler centers each feature to zero mean and unit variance.
// Constant features are left centered with a std of 1 so Transform never
// divides by zero.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

func (s *StandardScaler) Fit(features [][]float64) error {
	if len(features) == 0 {
		return fmt.Errorf("cannot fit scaler on empty dataset")
	}

	dim := len(features[0])
	s.Mean = make([]float64, dim)
	s.Std = make([]float64, dim)

	for _, row := range features {
		for i, v := range row {
			s.Mean[i] += v
		}
	}
	n := float64(len(features))
	for i := range s.Mean {
		s.Mean[i] /= n
	}

	for _, row := range features {
		for i, v := range row {
			d := v - s.Mean[i]
			s.Std[i] += d * d
		}
	}
	for i := range s.Std {
		s.Std[i] = math.Sqrt(s.Std[i] / n)
		if s.Std[i] == 0 {
			s.Std[i] = 1
		}
	}

	return nil
}

func (s *StandardScaler) Transform(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return out
}

func (s *StandardScaler) TransformAll(features [][]float64) [][]float64 {
	out := make([][]float64, len(features))
	for i, row := range features {
		out[i] = s.Transform(row)
	}
	return out
}
