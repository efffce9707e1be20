package models

import "time"

// TimeLayout is the timestamp format used in API responses and the
// predictions table.
const TimeLayout = "2006-01-02 15:04:05"

// Location is one barangay from the static location table. Loaded once at
// startup and shared read-only across requests.
type Location struct {
	Name      string  `json:"barangay"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Observation is a single location's current weather snapshot reduced from
// the Open-Meteo daily series. Every numeric field defaults to 0 so the
// scoring path never has to handle missing values; a fully zeroed record is
// the fallback when the upstream fetch fails.
type Observation struct {
	Time           time.Time
	Precip         float64 // latest day precipitation sum, mm
	Precip3dSum    float64 // trailing 3-day precipitation, mm
	Precip7dSum    float64 // trailing 7-day precipitation, mm
	RiverDischarge float64 // latest day river discharge, m3/s
	TempMax        float64
	TempMin        float64
	Humidity       float64
	Pressure       float64
	WindSpeed      float64
	PrecipProb     float64
}

// ZeroObservation returns the fallback record substituted when live data
// cannot be fetched: all numerics zero, timestamp = now.
func ZeroObservation(now time.Time) Observation {
	return Observation{Time: now}
}

// PredictionResult is the model output for one location.
type PredictionResult struct {
	RiskCluster  int
	RiskLabel    string
	Anomaly      int
	AnomalyLabel string
	Message      string
}

// PredictionRow is the positional join of location metadata, observation
// fields and prediction fields: one element of the /predict_all response and
// one row of the predictions history table.
type PredictionRow struct {
	Barangay       string  `json:"barangay"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Time           string  `json:"time"` // YYYY-MM-DD HH:MM:SS, UTC
	Precip         float64 `json:"precip"`
	Precip3dSum    float64 `json:"precip_3d_sum"`
	Precip7dSum    float64 `json:"precip_7d_sum"`
	RiverDischarge float64 `json:"river_discharge"`
	TempMax        float64 `json:"temp_max"`
	TempMin        float64 `json:"temp_min"`
	Humidity       float64 `json:"humidity"`
	Pressure       float64 `json:"pressure"`
	WindSpeed      float64 `json:"windspeed"`
	PrecipProb     float64 `json:"precip_prob"`
	RiskCluster    int     `json:"risk_cluster"`
	RiskLabel      string  `json:"risk_label"`
	Anomaly        int     `json:"anomaly"`
	AnomalyLabel   string  `json:"anomaly_label"`
	Message        string  `json:"message"`
}

// PredictionRun records one full pass over the location table, whether
// triggered by the API or the background snapshot job.
type PredictionRun struct {
	ID         int64
	Source     string // "api" or "snapshot"
	StartedAt  time.Time
	DurationMS int64
	Locations  int
	Fallbacks  int
}
