package train

import "math/rand"

// Split partitions row indices [0, n) into train and validation sets using a
// seeded uniform shuffle. The validation set holds n*ratio rows rounded to
// the nearest integer (half rounds up), but never all of them.
func Split(n int, ratio float64, seed int64) (trainIdx, valIdx []int) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

	valSize := int(float64(n)*ratio + 0.5)
	if valSize >= n {
		valSize = n - 1
	}
	if valSize < 0 {
		valSize = 0
	}

	return order[valSize:], order[:valSize]
}
