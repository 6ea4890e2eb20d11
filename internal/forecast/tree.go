package forecast

import (
	"cmp"
	"math"
	"slices"
)

// Node is one node of a fitted regression tree. Exported fields so the tree
// survives gob round trips.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
	Leaf      bool
}

// Tree is a CART regression tree stored as a flat node array.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for one feature vector.
func (t *Tree) Predict(x []float64) float64 {
	idx := int32(0)
	for {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

type treeBuilder struct {
	x       [][]float64
	y       []float64
	minLeaf int
	nodes   []Node
}

func fitTree(x [][]float64, y []float64, samples []int, minLeaf int) Tree {
	b := &treeBuilder{x: x, y: y, minLeaf: minLeaf}
	b.grow(samples)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for samples and returns its root index.
func (b *treeBuilder) grow(samples []int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{})

	mean := b.mean(samples)
	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		b.nodes[idx] = Node{Leaf: true, Value: mean}
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	leftIdx := b.grow(left)
	rightIdx := b.grow(right)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: leftIdx, Right: rightIdx}
	return idx
}

func (b *treeBuilder) mean(samples []int) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += b.y[s]
	}
	return sum / float64(len(samples))
}

// bestSplit scans every feature for the threshold that most reduces the sum
// of squared errors, honoring the minimum leaf size on both sides.
func (b *treeBuilder) bestSplit(samples []int) (feature int, threshold float64, ok bool) {
	n := len(samples)
	if n < 2*b.minLeaf {
		return 0, 0, false
	}

	var totalSum, totalSq float64
	for _, s := range samples {
		totalSum += b.y[s]
		totalSq += b.y[s] * b.y[s]
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)
	if parentSSE <= 1e-12 {
		return 0, 0, false
	}

	bestSSE := math.Inf(1)
	numFeatures := len(b.x[samples[0]])
	ordered := make([]int, n)

	for f := 0; f < numFeatures; f++ {
		copy(ordered, samples)
		slices.SortFunc(ordered, func(p, q int) int {
			return cmp.Compare(b.x[p][f], b.x[q][f])
		})

		leftSum, leftSq := 0.0, 0.0
		for i := 0; i < n-1; i++ {
			s := ordered[i]
			leftSum += b.y[s]
			leftSq += b.y[s] * b.y[s]

			leftN := i + 1
			rightN := n - leftN
			if leftN < b.minLeaf || rightN < b.minLeaf {
				continue
			}
			cur, next := b.x[s][f], b.x[ordered[i+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(leftN)) +
				(rightSq - rightSum*rightSum/float64(rightN))
			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}

	if !ok || bestSSE >= parentSSE {
		return 0, 0, false
	}
	return feature, threshold, true
}
