package api

import (
	"context"
	"log"
	"time"

	"github.com/kdpalma/floodwatch/internal/feature"
	"github.com/kdpalma/floodwatch/internal/metrics"
	"github.com/kdpalma/floodwatch/internal/models"
)

// RunPrediction performs one full pass: fetch observations for every
// location, build the feature batch, score it, and join everything
// positionally. The join has no key; it relies on FetchAll and Score both
// returning same-length, same-order results.
//
// Called by the /predict_all handler (source "api") and the background
// snapshot job (source "snapshot"). Results are persisted best-effort: a
// store failure is logged but never fails the prediction itself.
func (s *Server) RunPrediction(ctx context.Context, source string) ([]models.PredictionRow, error) {
	start := time.Now()

	obs := s.provider.FetchAll(ctx, s.locations)
	results, err := s.scorer.Score(feature.BuildBatch(obs))
	if err != nil {
		metrics.PredictionRuns.WithLabelValues(source, "error").Inc()
		return nil, err
	}

	fallbacks := 0
	rows := make([]models.PredictionRow, len(s.locations))
	for i, loc := range s.locations {
		o, p := obs[i], results[i]
		if o == models.ZeroObservation(o.Time) {
			// Indistinguishable from a genuinely bone-dry day, but close
			// enough for operational counting.
			fallbacks++
		}
		rows[i] = models.PredictionRow{
			Barangay:       loc.Name,
			Lat:            loc.Latitude,
			Lon:            loc.Longitude,
			Time:           o.Time.UTC().Format(models.TimeLayout),
			Precip:         o.Precip,
			Precip3dSum:    o.Precip3dSum,
			Precip7dSum:    o.Precip7dSum,
			RiverDischarge: o.RiverDischarge,
			TempMax:        o.TempMax,
			TempMin:        o.TempMin,
			Humidity:       o.Humidity,
			Pressure:       o.Pressure,
			WindSpeed:      o.WindSpeed,
			PrecipProb:     o.PrecipProb,
			RiskCluster:    p.RiskCluster,
			RiskLabel:      p.RiskLabel,
			Anomaly:        p.Anomaly,
			AnomalyLabel:   p.AnomalyLabel,
			Message:        p.Message,
		}
	}

	elapsed := time.Since(start)
	metrics.PredictionRuns.WithLabelValues(source, "ok").Inc()
	metrics.PredictionDuration.Observe(elapsed.Seconds())

	if s.store != nil {
		run := models.PredictionRun{
			Source:     source,
			StartedAt:  start.UTC(),
			DurationMS: elapsed.Milliseconds(),
			Locations:  len(rows),
			Fallbacks:  fallbacks,
		}
		if _, err := s.store.InsertRun(run, rows); err != nil {
			log.Printf("persist prediction run: %v", err)
		}
	}

	return rows, nil
}
