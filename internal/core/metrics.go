package core

import (
	"math"
	"sort"
)

// AUC computes the area under the ROC curve from predicted probabilities and
// 0/1 labels, via the rank-sum formulation. Returns 0.5 when only one class
// is present.
func AUC(probabilities, labels []float64) float64 {
	type scored struct {
		p     float64
		label float64
	}

	pairs := make([]scored, len(probabilities))
	for i := range probabilities {
		pairs[i] = scored{p: probabilities[i], label: labels[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	var positives, negatives, rankSum float64
	i := 0
	for i < len(pairs) {
		// Average ranks across ties.
		j := i
		for j < len(pairs) && pairs[j].p == pairs[i].p {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based

		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				positives++
				rankSum += avgRank
			} else {
				negatives++
			}
		}
		i = j
	}

	if positives == 0 || negatives == 0 {
		return 0.5
	}

	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}

// Accuracy scores probabilities against 0/1 labels at a 0.5 threshold.
func Accuracy(probabilities, labels []float64) float64 {
	if len(probabilities) == 0 {
		return 0
	}

	var correct float64
	for i, p := range probabilities {
		pred := 0.0
		if p >= 0.5 {
			pred = 1
		}
		if pred == labels[i] {
			correct++
		}
	}
	return correct / float64(len(probabilities))
}

func RMSE(predictions, targets []float64) float64 {
	if len(predictions) == 0 {
		return 0
	}

	var total float64
	for i, p := range predictions {
		d := p - targets[i]
		total += d * d
	}
	return math.Sqrt(total / float64(len(predictions)))
}

func MAE(predictions, targets []float64) float64 {
	if len(predictions) == 0 {
		return 0
	}

	var total float64
	for i, p := range predictions {
		total += math.Abs(p - targets[i])
	}
	return total / float64(len(predictions))
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
