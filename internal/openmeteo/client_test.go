package openmeteo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kdpalma/floodwatch/internal/models"
)

var testNow = time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.Handler, timeout time.Duration) (*Client, clockwork.Clock) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	clock := clockwork.NewFakeClockAt(testNow)
	c := NewClient(ts.Client(), Config{
		ForecastURL: ts.URL + "/forecast",
		FloodURL:    ts.URL + "/flood",
		Timeout:     timeout,
		Clock:       clock,
	})
	return c, clock
}

func forecastBody(precip string) string {
	return fmt.Sprintf(`{"daily":{
		"precipitation_sum":%s,
		"precipitation_probability_mean":[10,20,30],
		"temperature_2m_max":[31.2,32.0,33.4],
		"temperature_2m_min":[24.0,24.5,25.1],
		"relative_humidity_2m_max":[80,85,90],
		"surface_pressure_max":[1008,1009,1010],
		"windspeed_10m_max":[12,14,16]
	}}`, precip)
}

func floodBody(discharge string) string {
	return fmt.Sprintf(`{"daily":{"river_discharge":%s}}`, discharge)
}

func oracleHandler(precip, discharge string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, forecastBody(precip))
	})
	mux.HandleFunc("/flood", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, floodBody(discharge))
	})
	return mux
}

func TestFetchReduction(t *testing.T) {
	c, _ := newTestClient(t, oracleHandler("[1,2,3,4,5,6,7,8]", "[10,11,12,13,14,15,16,42]"), 5*time.Second)

	obs := c.Fetch(context.Background(), 15.15, 120.59)

	if obs.Precip != 8 {
		t.Errorf("Precip = %v, want 8", obs.Precip)
	}
	if obs.Precip3dSum != 21 {
		t.Errorf("Precip3dSum = %v, want 21", obs.Precip3dSum)
	}
	if obs.Precip7dSum != 35 {
		t.Errorf("Precip7dSum = %v, want 35", obs.Precip7dSum)
	}
	if obs.RiverDischarge != 42 {
		t.Errorf("RiverDischarge = %v, want 42", obs.RiverDischarge)
	}
	if obs.TempMax != 33.4 || obs.TempMin != 25.1 {
		t.Errorf("TempMax/TempMin = %v/%v, want 33.4/25.1", obs.TempMax, obs.TempMin)
	}
	if obs.Humidity != 90 || obs.Pressure != 1010 || obs.WindSpeed != 16 || obs.PrecipProb != 30 {
		t.Errorf("latest-day fields wrong: %+v", obs)
	}
	if !obs.Time.Equal(testNow) {
		t.Errorf("Time = %v, want %v", obs.Time, testNow)
	}
}

func TestFetchShortSeries(t *testing.T) {
	c, _ := newTestClient(t, oracleHandler("[5,3]", "[7]"), 5*time.Second)

	obs := c.Fetch(context.Background(), 15.15, 120.59)

	if obs.Precip != 3 {
		t.Errorf("Precip = %v, want 3", obs.Precip)
	}
	// Fewer than 3/7 points: sum whatever is available, no padding.
	if obs.Precip3dSum != 8 {
		t.Errorf("Precip3dSum = %v, want 8", obs.Precip3dSum)
	}
	if obs.Precip7dSum != 8 {
		t.Errorf("Precip7dSum = %v, want 8", obs.Precip7dSum)
	}
}

func TestFetchNullValues(t *testing.T) {
	c, _ := newTestClient(t, oracleHandler("[1,2,null]", "[null]"), 5*time.Second)

	obs := c.Fetch(context.Background(), 15.15, 120.59)

	if obs.Precip != 0 {
		t.Errorf("Precip = %v, want 0 for null latest value", obs.Precip)
	}
	if obs.Precip3dSum != 3 {
		t.Errorf("Precip3dSum = %v, want 3", obs.Precip3dSum)
	}
	if obs.RiverDischarge != 0 {
		t.Errorf("RiverDischarge = %v, want 0", obs.RiverDischarge)
	}
}

// A failing flood call discards the good forecast response too: the fallback
// is all-or-nothing per location.
func TestFetchPartialFailureIsAllOrNothing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, forecastBody("[1,2,3]"))
	})
	mux.HandleFunc("/flood", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	c, _ := newTestClient(t, mux, 5*time.Second)
	obs := c.Fetch(context.Background(), 15.15, 120.59)

	want := models.ZeroObservation(testNow)
	if obs != want {
		t.Errorf("Fetch = %+v, want zero fallback %+v", obs, want)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	})
	mux.HandleFunc("/flood", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, floodBody("[1]"))
	})

	c, _ := newTestClient(t, mux, 5*time.Second)
	obs := c.Fetch(context.Background(), 15.15, 120.59)

	if obs != models.ZeroObservation(testNow) {
		t.Errorf("expected zero fallback for malformed body, got %+v", obs)
	}
}

func TestFetchTimeout(t *testing.T) {
	mux := http.NewServeMux()
	slow := func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprint(w, forecastBody("[1]"))
	}
	mux.HandleFunc("/forecast", slow)
	mux.HandleFunc("/flood", slow)

	c, _ := newTestClient(t, mux, 150*time.Millisecond)

	start := time.Now()
	obs := c.Fetch(context.Background(), 15.15, 120.59)
	elapsed := time.Since(start)

	if obs != models.ZeroObservation(testNow) {
		t.Errorf("expected zero fallback on timeout, got %+v", obs)
	}
	if elapsed > 1*time.Second {
		t.Errorf("Fetch took %v, should settle near the 150ms timeout", elapsed)
	}
}

func TestFetchQueryParameters(t *testing.T) {
	var forecastQuery, floodQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		forecastQuery = r.URL.RawQuery
		fmt.Fprint(w, forecastBody("[1]"))
	})
	mux.HandleFunc("/flood", func(w http.ResponseWriter, r *http.Request) {
		floodQuery = r.URL.RawQuery
		fmt.Fprint(w, floodBody("[1]"))
	})

	c, _ := newTestClient(t, mux, 5*time.Second)
	c.Fetch(context.Background(), 15.1449, 120.5887)

	for _, q := range []string{forecastQuery, floodQuery} {
		if !strings.Contains(q, "latitude=15.1449") || !strings.Contains(q, "longitude=120.5887") {
			t.Errorf("query missing coordinates: %s", q)
		}
		if !strings.Contains(q, "past_days=7") {
			t.Errorf("query missing 7-day lookback: %s", q)
		}
		if !strings.Contains(q, "timezone=Asia%2FManila") {
			t.Errorf("query missing timezone: %s", q)
		}
	}
	if !strings.Contains(forecastQuery, "precipitation_sum") {
		t.Errorf("forecast query missing daily variables: %s", forecastQuery)
	}
	if !strings.Contains(floodQuery, "river_discharge") {
		t.Errorf("flood query missing river_discharge: %s", floodQuery)
	}
}

// The orchestrator must return observations in submission order regardless
// of completion order. Each location's payload is distinguishable: the
// oracle echoes the request latitude back as the precipitation value.
func TestFetchAllPreservesOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("latitude")
		fmt.Fprint(w, forecastBody("["+lat+"]"))
	})
	mux.HandleFunc("/flood", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, floodBody("[1]"))
	})

	c, _ := newTestClient(t, mux, 5*time.Second)

	locs := make([]models.Location, 8)
	for i := range locs {
		locs[i] = models.Location{
			Name:     "B" + strconv.Itoa(i),
			Latitude: float64(i + 1),
		}
	}

	obs := c.FetchAll(context.Background(), locs)

	if len(obs) != len(locs) {
		t.Fatalf("len(obs) = %d, want %d", len(obs), len(locs))
	}
	for i := range locs {
		if obs[i].Precip != locs[i].Latitude {
			t.Errorf("obs[%d].Precip = %v, want %v (order scrambled)", i, obs[i].Precip, locs[i].Latitude)
		}
	}
}

// One location's upstream failure must not disturb its neighbours: that slot
// gets the zero fallback, every other slot keeps its real data.
func TestFetchAllFailureIsolation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		lat := r.URL.Query().Get("latitude")
		if lat == "99" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, forecastBody("["+lat+"]"))
	})
	mux.HandleFunc("/flood", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, floodBody("[1]"))
	})

	c, _ := newTestClient(t, mux, 300*time.Millisecond)

	locs := []models.Location{
		{Name: "ok-1", Latitude: 1},
		{Name: "down", Latitude: 99},
		{Name: "ok-2", Latitude: 3},
	}

	obs := c.FetchAll(context.Background(), locs)

	if len(obs) != 3 {
		t.Fatalf("len(obs) = %d, want 3", len(obs))
	}
	if obs[0].Precip != 1 || obs[2].Precip != 3 {
		t.Errorf("healthy locations affected: %+v", obs)
	}
	if obs[1] != models.ZeroObservation(testNow) {
		t.Errorf("obs[1] = %+v, want zero fallback", obs[1])
	}
	if obs[1].RiverDischarge != 0 {
		t.Errorf("failed location kept partial data: %+v", obs[1])
	}
}
