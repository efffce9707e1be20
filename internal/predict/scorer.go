package predict

import (
	"errors"
	"fmt"

	"github.com/kdpalma/floodwatch/internal/models"
)

// ErrNotLoaded is returned by Score when the service started without a valid
// artifact set. Requests fail fast instead of crashing the process.
var ErrNotLoaded = errors.New("models not loaded")

const messageFormat = "Current flood status: %s. Risk level: %s."

// RiskLabel maps a cluster id to its ordinal risk label. Ids outside the
// trained cluster set map to Unknown rather than failing: an unexpected
// model output must never break the response contract.
func RiskLabel(cluster int) string {
	switch cluster {
	case 0:
		return "Low"
	case 1:
		return "Medium"
	case 2:
		return "High"
	default:
		return "Unknown"
	}
}

// AnomalyLabel maps the isolation forest output to its label.
func AnomalyLabel(anomaly int) string {
	switch anomaly {
	case -1:
		return "Potential Flood"
	case 1:
		return "Normal"
	default:
		return "Unknown"
	}
}

// Scorer applies the fitted artifact set to feature batches. A Scorer built
// with nil artifacts represents the degraded no-models state.
type Scorer struct {
	artifacts *Artifacts
}

func NewScorer(a *Artifacts) *Scorer {
	return &Scorer{artifacts: a}
}

// Loaded reports whether a valid artifact set is available.
func (s *Scorer) Loaded() bool {
	return s.artifacts != nil
}

// Score runs the batch through scale, cluster assignment, and anomaly
// detection, in that order; both models consume the same scaled matrix.
// A scaling failure is a hard error for the whole batch: by that point a
// shape mismatch means features and models disagree on the schema, and no
// per-row fallback can be trusted.
func (s *Scorer) Score(rows [][]float64) ([]models.PredictionResult, error) {
	if s.artifacts == nil {
		return nil, ErrNotLoaded
	}

	scaled, err := s.artifacts.Scaler.Transform(rows)
	if err != nil {
		return nil, fmt.Errorf("scale batch: %w", err)
	}

	clusters := s.artifacts.KMeans.Predict(scaled)
	anomalies := s.artifacts.Forest.Predict(scaled)

	results := make([]models.PredictionResult, len(rows))
	for i := range rows {
		riskLabel := RiskLabel(clusters[i])
		anomalyLabel := AnomalyLabel(anomalies[i])
		results[i] = models.PredictionResult{
			RiskCluster:  clusters[i],
			RiskLabel:    riskLabel,
			Anomaly:      anomalies[i],
			AnomalyLabel: anomalyLabel,
			Message:      fmt.Sprintf(messageFormat, anomalyLabel, riskLabel),
		}
	}
	return results, nil
}
