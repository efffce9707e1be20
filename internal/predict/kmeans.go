package predict

import "fmt"

// KMeans is a fitted clustering model reduced to its centroid table.
// Assignment at inference time is nearest centroid by squared Euclidean
// distance over the scaled feature space. Cluster ids are ordered by the
// training pipeline so that mean precipitation rises with the id
// (0 = Low, 1 = Medium, 2 = High).
type KMeans struct {
	Centroids [][]float64 `json:"centroids"`
}

func (m *KMeans) validate(dims int) error {
	if len(m.Centroids) == 0 {
		return fmt.Errorf("kmeans: no centroids")
	}
	for i, c := range m.Centroids {
		if len(c) != dims {
			return fmt.Errorf("kmeans: centroid %d has %d dims, want %d", i, len(c), dims)
		}
	}
	return nil
}

// Predict assigns each scaled row to its nearest centroid.
func (m *KMeans) Predict(rows [][]float64) []int {
	out := make([]int, len(rows))
	for i, row := range rows {
		out[i] = m.assign(row)
	}
	return out
}

func (m *KMeans) assign(row []float64) int {
	best := 0
	bestDist := sqDist(row, m.Centroids[0])
	for k := 1; k < len(m.Centroids); k++ {
		if d := sqDist(row, m.Centroids[k]); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
