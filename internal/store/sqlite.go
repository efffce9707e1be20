// Package store persists prediction runs so risk history accrues per
// barangay. Live predictions never read from here; the store is a sink for
// the API and snapshot job and a source for the history endpoint.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kdpalma/floodwatch/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertLocation mirrors one row of the location table into SQLite, keeping
// its position so history queries can reproduce table order.
func (s *Store) UpsertLocation(loc models.Location, position int) error {
	_, err := s.db.Exec(`
		INSERT INTO locations (barangay, latitude, longitude, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(barangay) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			position = excluded.position
	`, loc.Name, loc.Latitude, loc.Longitude, position)
	return err
}

func (s *Store) GetLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`SELECT barangay, latitude, longitude FROM locations ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.Name, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// InsertRun stores one full prediction pass and its per-location rows in a
// single transaction, returning the run id.
func (s *Store) InsertRun(run models.PredictionRun, results []models.PredictionRow) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO prediction_runs (source, started_at, duration_ms, locations, fallbacks)
		VALUES (?, ?, ?, ?, ?)
	`, run.Source, run.StartedAt.UTC(), run.DurationMS, run.Locations, run.Fallbacks)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO predictions (
			run_id, barangay, observed_at,
			precip, precip_3d_sum, precip_7d_sum, river_discharge,
			temp_max, temp_min, humidity, pressure, windspeed, precip_prob,
			risk_cluster, risk_label, anomaly, anomaly_label, message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, row := range results {
		if _, err := stmt.Exec(
			runID, row.Barangay, row.Time,
			row.Precip, row.Precip3dSum, row.Precip7dSum, row.RiverDischarge,
			row.TempMax, row.TempMin, row.Humidity, row.Pressure, row.WindSpeed, row.PrecipProb,
			row.RiskCluster, row.RiskLabel, row.Anomaly, row.AnomalyLabel, row.Message,
		); err != nil {
			return 0, fmt.Errorf("insert prediction for %s: %w", row.Barangay, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// LatestRun returns the most recent run metadata, or nil when no run has
// been recorded yet.
func (s *Store) LatestRun() (*models.PredictionRun, error) {
	var run models.PredictionRun
	err := s.db.QueryRow(`
		SELECT id, source, started_at, duration_ms, locations, fallbacks
		FROM prediction_runs ORDER BY id DESC LIMIT 1
	`).Scan(&run.ID, &run.Source, &run.StartedAt, &run.DurationMS, &run.Locations, &run.Fallbacks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetPredictions returns a barangay's stored predictions between from and to
// (inclusive), oldest first.
func (s *Store) GetPredictions(barangay string, from, to time.Time) ([]models.PredictionRow, error) {
	rows, err := s.db.Query(`
		SELECT p.barangay, l.latitude, l.longitude, p.observed_at,
			p.precip, p.precip_3d_sum, p.precip_7d_sum, p.river_discharge,
			p.temp_max, p.temp_min, p.humidity, p.pressure, p.windspeed, p.precip_prob,
			p.risk_cluster, p.risk_label, p.anomaly, p.anomaly_label, p.message
		FROM predictions p
		JOIN locations l ON l.barangay = p.barangay
		WHERE p.barangay = ? AND p.observed_at >= ? AND p.observed_at <= ?
		ORDER BY p.observed_at
	`, barangay, from.UTC().Format(models.TimeLayout), to.UTC().Format(models.TimeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.PredictionRow
	for rows.Next() {
		var row models.PredictionRow
		if err := rows.Scan(
			&row.Barangay, &row.Lat, &row.Lon, &row.Time,
			&row.Precip, &row.Precip3dSum, &row.Precip7dSum, &row.RiverDischarge,
			&row.TempMax, &row.TempMin, &row.Humidity, &row.Pressure, &row.WindSpeed, &row.PrecipProb,
			&row.RiskCluster, &row.RiskLabel, &row.Anomaly, &row.AnomalyLabel, &row.Message,
		); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
