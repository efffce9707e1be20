// Package feature turns weather observations into the fixed-width vectors
// the fitted models consume. The column set and order here are frozen: they
// must match the schema the scaler was fitted on, byte for byte.
package feature

import (
	"fmt"
	"strings"

	"github.com/kdpalma/floodwatch/internal/models"
)

// Columns is the inference-time feature schema. The four *_weighted names
// come from a training-time rename of the raw precipitation and discharge
// columns; the order is the column order of the fitted scaler.
var Columns = []string{
	"precip_weighted",
	"river_discharge_weighted",
	"precip_lag1",
	"precip_lag2",
	"precip_3d_sum_weighted",
	"precip_7d_sum_weighted",
	"month",
	"day_of_year",
	"weekday",
}

// SchemaError reports a column set that does not match the frozen schema.
// Scoring against a misaligned schema would silently attribute values to the
// wrong features, so this is always a hard error.
type SchemaError struct {
	Want []string
	Got  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("feature schema mismatch: want [%s], got [%s]",
		strings.Join(e.Want, " "), strings.Join(e.Got, " "))
}

// CheckSchema verifies that got matches Columns exactly, including order.
func CheckSchema(got []string) error {
	if len(got) != len(Columns) {
		return &SchemaError{Want: Columns, Got: got}
	}
	for i, name := range Columns {
		if got[i] != name {
			return &SchemaError{Want: Columns, Got: got}
		}
	}
	return nil
}

// Build derives one feature row from an observation. Calendar fields are
// taken from the observation timestamp in UTC, with weekday 0 = Monday.
//
// precip_lag1 and precip_lag2 are copies of same-day precipitation, not true
// T-1/T-2 history. The training pipeline computes genuine lags from
// historical rows, so this is a known train/serve skew the fitted models
// were validated against; see the pin in builder_test.go before changing it.
func Build(obs models.Observation) []float64 {
	t := obs.Time.UTC()
	return []float64{
		obs.Precip,
		obs.RiverDischarge,
		obs.Precip, // precip_lag1
		obs.Precip, // precip_lag2
		obs.Precip3dSum,
		obs.Precip7dSum,
		float64(t.Month()),
		float64(t.YearDay()),
		float64((int(t.Weekday()) + 6) % 7),
	}
}

// BuildBatch applies Build row by row. The batch path is the same algorithm
// as the scalar path, so single-row and batch invocations agree by
// construction.
func BuildBatch(obs []models.Observation) [][]float64 {
	rows := make([][]float64, len(obs))
	for i := range obs {
		rows[i] = Build(obs[i])
	}
	return rows
}
