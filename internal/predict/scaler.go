package predict

import (
	"fmt"

	"github.com/kdpalma/floodwatch/internal/feature"
)

// Scaler is a fitted standard scaler: per-column mean and scale captured at
// training time. Columns records the schema it was fitted on.
type Scaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func (s *Scaler) validate() error {
	if err := feature.CheckSchema(s.Columns); err != nil {
		return fmt.Errorf("scaler: %w", err)
	}
	if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
		return fmt.Errorf("scaler: %d columns but %d means and %d scales",
			len(s.Columns), len(s.Mean), len(s.Scale))
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("scaler: zero scale for column %s", s.Columns[i])
		}
	}
	return nil
}

// Transform standardizes a feature matrix in a single pass. A row of the
// wrong width means the caller built features against a different schema,
// which is a hard error for the whole batch.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.Columns) {
			return nil, fmt.Errorf("scaler: row %d has %d values, want %d", i, len(row), len(s.Columns))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}
