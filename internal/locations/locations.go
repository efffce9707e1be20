// Package locations loads the static barangay table the prediction service
// iterates over. The table is read once at startup and shared read-only.
package locations

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kdpalma/floodwatch/internal/models"
)

// Load reads a CSV with at least barangay, latitude, and longitude columns.
// Extra columns are ignored; row order is preserved because the response
// table and the history store keep the same ordering.
func Load(path string) ([]models.Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locations: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read locations header: %w", err)
	}

	nameIdx, latIdx, lonIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "barangay":
			nameIdx = i
		case "latitude":
			latIdx = i
		case "longitude":
			lonIdx = i
		}
	}
	if nameIdx < 0 || latIdx < 0 || lonIdx < 0 {
		return nil, fmt.Errorf("locations csv missing required columns (barangay, latitude, longitude): %v", header)
	}

	var locs []models.Location
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read locations: %w", err)
		}
		line++
		if len(record) <= nameIdx || len(record) <= latIdx || len(record) <= lonIdx {
			return nil, fmt.Errorf("locations csv line %d: too few columns", line)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("locations csv line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("locations csv line %d: longitude: %w", line, err)
		}

		locs = append(locs, models.Location{
			Name:      strings.TrimSpace(record[nameIdx]),
			Latitude:  lat,
			Longitude: lon,
		})
	}

	if len(locs) == 0 {
		return nil, fmt.Errorf("locations csv %s has no rows", path)
	}
	return locs, nil
}
