package store

import (
	"fmt"
	"log"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS locations (
    barangay TEXT PRIMARY KEY,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    duration_ms INTEGER NOT NULL,
    locations INTEGER NOT NULL,
    fallbacks INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES prediction_runs(id),
    barangay TEXT NOT NULL,
    observed_at DATETIME NOT NULL,
    precip REAL NOT NULL,
    precip_3d_sum REAL NOT NULL,
    precip_7d_sum REAL NOT NULL,
    river_discharge REAL NOT NULL,
    temp_max REAL NOT NULL,
    temp_min REAL NOT NULL,
    humidity REAL NOT NULL,
    pressure REAL NOT NULL,
    windspeed REAL NOT NULL,
    precip_prob REAL NOT NULL,
    risk_cluster INTEGER NOT NULL,
    risk_label TEXT NOT NULL,
    anomaly INTEGER NOT NULL,
    anomaly_label TEXT NOT NULL,
    message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_barangay_time ON predictions(barangay, observed_at);
CREATE INDEX IF NOT EXISTS idx_predictions_run ON predictions(run_id);
`,
	},
}

// Migrate applies any pending schema migrations in version order.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.Version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		log.Printf("applied migration %d: %s", m.Version, m.Description)
	}

	return nil
}
