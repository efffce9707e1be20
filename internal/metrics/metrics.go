package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_oracle_api_calls_total",
			Help: "Total Open-Meteo API calls",
		},
		[]string{"endpoint", "status"},
	)

	OracleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floodwatch_oracle_api_latency_seconds",
			Help:    "Open-Meteo API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	FallbackObservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floodwatch_fallback_observations_total",
			Help: "Observations replaced by the zero fallback record after a failed fetch",
		},
	)

	PredictionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodwatch_prediction_runs_total",
			Help: "Full prediction passes over the location table",
		},
		[]string{"source", "status"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floodwatch_prediction_run_duration_seconds",
			Help:    "Wall time of a full fetch-and-score pass",
			Buckets: prometheus.DefBuckets,
		},
	)
)
