package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kdpalma/floodwatch/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func samplePrediction(barangay, observedAt string) models.PredictionRow {
	return models.PredictionRow{
		Barangay:       barangay,
		Lat:            15.14,
		Lon:            120.59,
		Time:           observedAt,
		Precip:         12.5,
		Precip3dSum:    40,
		Precip7dSum:    85,
		RiverDischarge: 3.2,
		TempMax:        32.1,
		TempMin:        24.8,
		Humidity:       88,
		Pressure:       1007,
		WindSpeed:      14,
		PrecipProb:     70,
		RiskCluster:    1,
		RiskLabel:      "Medium",
		Anomaly:        1,
		AnomalyLabel:   "Normal",
		Message:        "Current flood status: Normal. Risk level: Medium.",
	}
}

func TestUpsertAndGetLocations(t *testing.T) {
	store := setupTestStore(t)

	locs := []models.Location{
		{Name: "Anunas", Latitude: 15.1450, Longitude: 120.5560},
		{Name: "Balibago", Latitude: 15.1671, Longitude: 120.5871},
	}
	for i, loc := range locs {
		if err := store.UpsertLocation(loc, i); err != nil {
			t.Fatalf("UpsertLocation: %v", err)
		}
	}

	// Re-upserting with new coordinates updates in place.
	if err := store.UpsertLocation(models.Location{Name: "Anunas", Latitude: 15.15, Longitude: 120.56}, 0); err != nil {
		t.Fatalf("UpsertLocation update: %v", err)
	}

	got, err := store.GetLocations()
	if err != nil {
		t.Fatalf("GetLocations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(locations) = %d, want 2", len(got))
	}
	if got[0].Name != "Anunas" || got[1].Name != "Balibago" {
		t.Errorf("location order not preserved: %+v", got)
	}
	if got[0].Latitude != 15.15 {
		t.Errorf("upsert did not update latitude: %v", got[0].Latitude)
	}
}

func TestInsertRunAndLatest(t *testing.T) {
	store := setupTestStore(t)
	store.UpsertLocation(models.Location{Name: "Anunas", Latitude: 15.14, Longitude: 120.55}, 0)

	run := models.PredictionRun{
		Source:     "api",
		StartedAt:  time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC),
		DurationMS: 812,
		Locations:  1,
		Fallbacks:  0,
	}
	id, err := store.InsertRun(run, []models.PredictionRow{samplePrediction("Anunas", "2026-08-24 06:00:00")})
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero run id")
	}

	latest, err := store.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest == nil {
		t.Fatal("LatestRun returned nil after insert")
	}
	if latest.Source != "api" || latest.Locations != 1 || latest.DurationMS != 812 {
		t.Errorf("LatestRun = %+v", latest)
	}
}

func TestLatestRunEmpty(t *testing.T) {
	store := setupTestStore(t)
	latest, err := store.LatestRun()
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil run on empty store, got %+v", latest)
	}
}

func TestGetPredictionsRange(t *testing.T) {
	store := setupTestStore(t)
	store.UpsertLocation(models.Location{Name: "Anunas", Latitude: 15.14, Longitude: 120.55}, 0)
	store.UpsertLocation(models.Location{Name: "Balibago", Latitude: 15.17, Longitude: 120.59}, 1)

	times := []string{"2026-08-22 06:00:00", "2026-08-23 06:00:00", "2026-08-24 06:00:00"}
	for i, ts := range times {
		run := models.PredictionRun{Source: "snapshot", StartedAt: time.Now().UTC(), Locations: 2}
		rows := []models.PredictionRow{
			samplePrediction("Anunas", ts),
			samplePrediction("Balibago", ts),
		}
		if _, err := store.InsertRun(run, rows); err != nil {
			t.Fatalf("InsertRun %d: %v", i, err)
		}
	}

	from := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 24, 23, 59, 59, 0, time.UTC)
	got, err := store.GetPredictions("Anunas", from, to)
	if err != nil {
		t.Fatalf("GetPredictions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(predictions) = %d, want 2", len(got))
	}
	if got[0].Time != "2026-08-23 06:00:00" || got[1].Time != "2026-08-24 06:00:00" {
		t.Errorf("predictions out of order or wrong window: %+v", got)
	}
	if got[0].Barangay != "Anunas" {
		t.Errorf("wrong barangay returned: %+v", got[0])
	}
	if got[0].Lat != 15.14 {
		t.Errorf("join with locations failed: %+v", got[0])
	}
}
