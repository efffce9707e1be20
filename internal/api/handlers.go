package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kdpalma/floodwatch/internal/predict"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "Flood Control API is running.")
}

// handlePredictAll returns one row per known location, in location-table
// order. It either succeeds with the full array or fails with an error
// object; it never returns a partially populated array.
func (s *Server) handlePredictAll(w http.ResponseWriter, r *http.Request) {
	rows, err := s.RunPrediction(r.Context(), "api")
	if errors.Is(err, predict.ErrNotLoaded) {
		writeError(w, http.StatusServiceUnavailable, "models not loaded")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	barangay := r.URL.Query().Get("location")
	if barangay == "" {
		writeError(w, http.StatusBadRequest, "location parameter required")
		return
	}

	hours := 24 * 7
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	end := s.clock.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	rows, err := s.store.GetPredictions(barangay, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.scorer.Loaded() {
		status = "degraded"
	}

	health := map[string]any{
		"status":        status,
		"models_loaded": s.scorer.Loaded(),
		"locations":     len(s.locations),
	}
	if s.store != nil {
		if run, err := s.store.LatestRun(); err == nil && run != nil {
			health["last_run"] = run.StartedAt.UTC().Format(time.RFC3339)
			health["last_run_source"] = run.Source
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
