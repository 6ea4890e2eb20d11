package forecast

import "math/rand/v2"

// Forest is a bagged ensemble of regression trees: each tree is fitted on a
// bootstrap resample of the training set and predictions are averaged.
type Forest struct {
	Trees       []Tree
	NumFeatures int
}

func fitForest(x [][]float64, y []float64, trees, minLeaf int, rng *rand.Rand) *Forest {
	n := len(x)
	forest := &Forest{
		Trees:       make([]Tree, 0, trees),
		NumFeatures: len(x[0]),
	}

	samples := make([]int, n)
	for range trees {
		for i := range samples {
			samples[i] = rng.IntN(n)
		}
		forest.Trees = append(forest.Trees, fitTree(x, y, samples, minLeaf))
	}
	return forest
}

// Predict returns the ensemble mean for one feature vector.
func (f *Forest) Predict(x []float64) float64 {
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}
