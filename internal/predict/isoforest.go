package predict

import (
	"fmt"
	"math"
)

// TreeNode is one node of a fitted isolation tree in flattened form. A leaf
// has Feature == -1; Size is the number of training samples that reached it,
// used for the unsplit-depth correction.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

// IsolationForest is a fitted anomaly model: an ensemble of isolation trees
// plus the subsample size and decision offset captured at training time.
// Predict follows the sklearn convention: -1 for anomalous, 1 for normal.
type IsolationForest struct {
	Trees      [][]TreeNode `json:"trees"`
	NumSamples int          `json:"num_samples"`
	Offset     float64      `json:"offset"`
}

func (f *IsolationForest) validate(dims int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("isolation forest: no trees")
	}
	if f.NumSamples < 2 {
		return fmt.Errorf("isolation forest: subsample size %d", f.NumSamples)
	}
	for ti, tree := range f.Trees {
		if len(tree) == 0 {
			return fmt.Errorf("isolation forest: tree %d is empty", ti)
		}
		for ni, n := range tree {
			if n.Feature >= dims {
				return fmt.Errorf("isolation forest: tree %d node %d splits on feature %d, want < %d", ti, ni, n.Feature, dims)
			}
			if n.Feature >= 0 && (n.Left < 0 || n.Left >= len(tree) || n.Right < 0 || n.Right >= len(tree)) {
				return fmt.Errorf("isolation forest: tree %d node %d has out-of-range children", ti, ni)
			}
		}
	}
	return nil
}

// Predict labels each scaled row: -1 anomalous, 1 normal.
func (f *IsolationForest) Predict(rows [][]float64) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		if f.DecisionFunction(row) < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

// DecisionFunction returns the sample's anomaly decision value: negative for
// anomalies, positive for normal points, matching the fitted offset.
func (f *IsolationForest) DecisionFunction(row []float64) float64 {
	return f.scoreSample(row) - f.Offset
}

// scoreSample computes the sklearn score_samples value: the negated anomaly
// score 2^(-E[h(x)]/c(n)) averaged over the ensemble.
func (f *IsolationForest) scoreSample(row []float64) float64 {
	var depth float64
	for _, tree := range f.Trees {
		depth += pathLength(tree, row)
	}
	depth /= float64(len(f.Trees))
	return -math.Pow(2, -depth/averagePathLength(f.NumSamples))
}

func pathLength(tree []TreeNode, row []float64) float64 {
	var depth float64
	i := 0
	for {
		n := tree[i]
		if n.Feature < 0 {
			if n.Size > 1 {
				depth += averagePathLength(n.Size)
			}
			return depth
		}
		depth++
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
