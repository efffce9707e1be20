// Package predict loads the fitted model artifacts produced by the training
// pipeline and scores feature batches against them. The artifacts are opaque
// parameter tables: nothing here learns, it only applies what was fitted.
package predict

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kdpalma/floodwatch/internal/feature"
)

const (
	ScalerFile = "scaler.json"
	KMeansFile = "kmeans.json"
	ForestFile = "isolation_forest.json"
)

// Artifacts is the full fitted model set, loaded once at startup and shared
// read-only by every request. Reloading requires a process restart.
type Artifacts struct {
	Scaler *Scaler
	KMeans *KMeans
	Forest *IsolationForest
}

// Load reads and validates the three artifact files from dir. Any missing or
// malformed file fails the whole load; callers are expected to run degraded
// rather than score against a partial model set.
func Load(dir string) (*Artifacts, error) {
	a := &Artifacts{
		Scaler: &Scaler{},
		KMeans: &KMeans{},
		Forest: &IsolationForest{},
	}
	if err := readJSON(filepath.Join(dir, ScalerFile), a.Scaler); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, KMeansFile), a.KMeans); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, ForestFile), a.Forest); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate cross-checks the artifact set against the frozen feature schema.
func (a *Artifacts) Validate() error {
	if err := a.Scaler.validate(); err != nil {
		return err
	}
	dims := len(feature.Columns)
	if err := a.KMeans.validate(dims); err != nil {
		return err
	}
	return a.Forest.validate(dims)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}
