// Command genmodel fits a synthetic model set for local development and
// testing: a standardization scaler, three risk centroids, and an isolation
// forest, exported as the same JSON artifacts the training pipeline produces.
// It also writes a small barangay coordinate table.
//
// Usage:
//
//	go run ./cmd/genmodel -out models -csv data/barangays.csv
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/kdpalma/floodwatch/internal/feature"
	"github.com/kdpalma/floodwatch/internal/models"
	"github.com/kdpalma/floodwatch/internal/predict"
)

const (
	numClusters   = 3
	numTrees      = 100
	subsampleSize = 256
	maxTreeDepth  = 8 // ceil(log2(subsampleSize))
)

var sampleBarangays = []models.Location{
	{Name: "Anunas", Latitude: 15.1450, Longitude: 120.5560},
	{Name: "Balibago", Latitude: 15.1671, Longitude: 120.5871},
	{Name: "Cutcut", Latitude: 15.1240, Longitude: 120.5837},
	{Name: "Margot", Latitude: 15.1876, Longitude: 120.5252},
	{Name: "Pampang", Latitude: 15.1339, Longitude: 120.6067},
	{Name: "Sapangbato", Latitude: 15.1667, Longitude: 120.5000},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "models", "output directory for model artifacts")
	csvOut := flag.String("csv", "", "also write a sample barangay CSV to this path")
	samples := flag.Int("samples", 2000, "number of synthetic observations to fit on")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	rows := syntheticBatch(rng, *samples)
	log.Printf("generated %d synthetic observations", len(rows))

	scaler := fitScaler(rows)
	scaled, err := scaler.Transform(rows)
	if err != nil {
		return fmt.Errorf("scale training batch: %w", err)
	}

	km := fitKMeans(rng, scaled)
	forest := fitForest(rng, scaled)

	artifacts := &predict.Artifacts{Scaler: scaler, KMeans: km, Forest: forest}
	if err := artifacts.Validate(); err != nil {
		return fmt.Errorf("fitted artifacts invalid: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	files := map[string]any{
		predict.ScalerFile: scaler,
		predict.KMeansFile: km,
		predict.ForestFile: forest,
	}
	for name, v := range files {
		if err := writeJSON(filepath.Join(*outDir, name), v); err != nil {
			return err
		}
		log.Printf("wrote %s", filepath.Join(*outDir, name))
	}

	if *csvOut != "" {
		if err := writeCSV(*csvOut); err != nil {
			return err
		}
		log.Printf("wrote %s", *csvOut)
	}
	return nil
}

// syntheticBatch draws observations from three rainfall regimes (dry,
// monsoon, storm) so the clusters have something real to separate.
func syntheticBatch(rng *rand.Rand, n int) [][]float64 {
	rows := make([][]float64, 0, n)
	day := time.Date(2025, time.January, 1, 6, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		var precip, discharge float64
		switch r := rng.Float64(); {
		case r < 0.55: // dry
			precip = rng.Float64() * 5
			discharge = 1 + rng.Float64()*3
		case r < 0.90: // monsoon
			precip = 10 + rng.Float64()*30
			discharge = 5 + rng.Float64()*15
		default: // storm
			precip = 45 + rng.Float64()*60
			discharge = 20 + rng.Float64()*40
		}

		obs := models.Observation{
			Time:           day.AddDate(0, 0, i%365),
			Precip:         precip,
			Precip3dSum:    precip * (1.5 + rng.Float64()*1.5),
			Precip7dSum:    precip * (3 + rng.Float64()*4),
			RiverDischarge: discharge,
			TempMax:        28 + rng.Float64()*8,
			TempMin:        22 + rng.Float64()*4,
			Humidity:       60 + rng.Float64()*40,
			Pressure:       1000 + rng.Float64()*15,
			WindSpeed:      5 + rng.Float64()*30,
			PrecipProb:     math.Min(100, precip*2+rng.Float64()*20),
		}
		rows = append(rows, feature.Build(obs))
	}
	return rows
}

func fitScaler(rows [][]float64) *predict.Scaler {
	dims := len(feature.Columns)
	mean := make([]float64, dims)
	scale := make([]float64, dims)

	for _, row := range rows {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(rows))
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / float64(len(rows)))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	return &predict.Scaler{Columns: feature.Columns, Mean: mean, Scale: scale}
}

// fitKMeans runs Lloyd's algorithm, then orders the centroids by their
// precipitation coordinate so cluster index 0 is always the driest regime.
func fitKMeans(rng *rand.Rand, rows [][]float64) *predict.KMeans {
	dims := len(rows[0])
	centroids := make([][]float64, numClusters)
	for i := range centroids {
		centroids[i] = append([]float64(nil), rows[rng.Intn(len(rows))]...)
	}

	assign := make([]int, len(rows))
	for iter := 0; iter < 50; iter++ {
		changed := false
		for i, row := range rows {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				var d float64
				for j := range row {
					diff := row[j] - centroid[j]
					d += diff * diff
				}
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, numClusters)
		next := make([][]float64, numClusters)
		for i := range next {
			next[i] = make([]float64, dims)
		}
		for i, row := range rows {
			counts[assign[i]]++
			for j, v := range row {
				next[assign[i]][j] += v
			}
		}
		for c := range next {
			if counts[c] == 0 {
				next[c] = append([]float64(nil), rows[rng.Intn(len(rows))]...)
				continue
			}
			for j := range next[c] {
				next[c][j] /= float64(counts[c])
			}
		}
		centroids = next
	}

	// Index 0 = Low through index 2 = High, keyed on scaled precipitation.
	for i := 0; i < len(centroids); i++ {
		for j := i + 1; j < len(centroids); j++ {
			if centroids[j][0] < centroids[i][0] {
				centroids[i], centroids[j] = centroids[j], centroids[i]
			}
		}
	}

	return &predict.KMeans{Centroids: centroids}
}

func fitForest(rng *rand.Rand, rows [][]float64) *predict.IsolationForest {
	trees := make([][]predict.TreeNode, numTrees)
	for t := range trees {
		sample := make([][]float64, 0, subsampleSize)
		for i := 0; i < subsampleSize && i < len(rows); i++ {
			sample = append(sample, rows[rng.Intn(len(rows))])
		}
		var nodes []predict.TreeNode
		growTree(rng, sample, 0, &nodes)
		trees[t] = nodes
	}
	return &predict.IsolationForest{
		Trees:      trees,
		NumSamples: subsampleSize,
		Offset:     -0.5,
	}
}

// growTree appends a subtree rooted at the returned index. Splits pick a
// random feature with spread and a uniform threshold inside its range.
func growTree(rng *rand.Rand, sample [][]float64, depth int, nodes *[]predict.TreeNode) int {
	idx := len(*nodes)
	if len(sample) <= 1 || depth >= maxTreeDepth {
		*nodes = append(*nodes, predict.TreeNode{Feature: -1, Size: len(sample)})
		return idx
	}

	dims := len(sample[0])
	var f int
	var lo, hi float64
	found := false
	for _, cand := range rng.Perm(dims) {
		lo, hi = sample[0][cand], sample[0][cand]
		for _, row := range sample[1:] {
			lo = math.Min(lo, row[cand])
			hi = math.Max(hi, row[cand])
		}
		if hi > lo {
			f, found = cand, true
			break
		}
	}
	if !found {
		*nodes = append(*nodes, predict.TreeNode{Feature: -1, Size: len(sample)})
		return idx
	}

	threshold := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range sample {
		if row[f] <= threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	*nodes = append(*nodes, predict.TreeNode{Feature: f, Threshold: threshold})
	leftIdx := growTree(rng, left, depth+1, nodes)
	rightIdx := growTree(rng, right, depth+1, nodes)
	(*nodes)[idx].Left = leftIdx
	(*nodes)[idx].Right = rightIdx
	return idx
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func writeCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"barangay", "latitude", "longitude"}); err != nil {
		return err
	}
	for _, b := range sampleBarangays {
		rec := []string{
			b.Name,
			fmt.Sprintf("%.4f", b.Latitude),
			fmt.Sprintf("%.4f", b.Longitude),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
