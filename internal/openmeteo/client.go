// Package openmeteo fetches current rainfall and river-discharge series from
// the Open-Meteo forecast and flood APIs and reduces them into per-location
// observations for scoring.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/kdpalma/floodwatch/internal/metrics"
	"github.com/kdpalma/floodwatch/internal/models"
)

const (
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultFloodURL    = "https://flood-api.open-meteo.com/v1/flood"
	DefaultTimezone    = "Asia/Manila"
	DefaultTimeout     = 10 * time.Second

	// Both queries cover the past 7 days plus today so the trailing sums
	// always have a full window to reduce over.
	lookbackDays = 7
)

// Config carries the optional knobs for a Client. Zero values take the
// package defaults.
type Config struct {
	ForecastURL string
	FloodURL    string
	Timezone    string
	Timeout     time.Duration
	Clock       clockwork.Clock
}

// Client queries the two Open-Meteo endpoints for one location at a time.
// It is safe for concurrent use; all in-flight calls share one HTTP client
// so the fan-out reuses a single connection pool.
type Client struct {
	client      *http.Client
	forecastURL string
	floodURL    string
	timezone    string
	timeout     time.Duration
	clock       clockwork.Clock

	forecastBreaker *gobreaker.CircuitBreaker
	floodBreaker    *gobreaker.CircuitBreaker
}

func NewClient(httpClient *http.Client, cfg Config) *Client {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.FloodURL == "" {
		cfg.FloodURL = DefaultFloodURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
	}

	return &Client{
		client:          httpClient,
		forecastURL:     cfg.ForecastURL,
		floodURL:        cfg.FloodURL,
		timezone:        cfg.Timezone,
		timeout:         cfg.Timeout,
		clock:           cfg.Clock,
		forecastBreaker: newBreaker("openmeteo-forecast"),
		floodBreaker:    newBreaker("openmeteo-flood"),
	}
}

type forecastResponse struct {
	Daily struct {
		PrecipitationSum             []*float64 `json:"precipitation_sum"`
		PrecipitationProbabilityMean []*float64 `json:"precipitation_probability_mean"`
		Temperature2mMax             []*float64 `json:"temperature_2m_max"`
		Temperature2mMin             []*float64 `json:"temperature_2m_min"`
		RelativeHumidity2mMax        []*float64 `json:"relative_humidity_2m_max"`
		SurfacePressureMax           []*float64 `json:"surface_pressure_max"`
		Windspeed10mMax              []*float64 `json:"windspeed_10m_max"`
	} `json:"daily"`
}

type floodResponse struct {
	Daily struct {
		RiverDischarge []*float64 `json:"river_discharge"`
	} `json:"daily"`
}

// Fetch returns the observation for one location. It never fails: if either
// endpoint errors out, the whole observation falls back to the zero record
// stamped with the current instant.
//
// The fallback is all-or-nothing: a failing flood call discards a good
// forecast response too. Keeping partial data would feed the models a mix
// the training set never saw, so confirm with whoever owns the fitted
// artifacts before preserving partial successes here.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) models.Observation {
	var (
		wg       sync.WaitGroup
		forecast forecastResponse
		flood    floodResponse
		ferr     error
		derr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ferr = c.getJSON(ctx, "forecast", c.forecastBreaker, c.forecastQuery(lat, lon), &forecast)
	}()
	go func() {
		defer wg.Done()
		derr = c.getJSON(ctx, "flood", c.floodBreaker, c.floodQuery(lat, lon), &flood)
	}()
	wg.Wait()

	if err := errors.Join(ferr, derr); err != nil {
		log.Printf("openmeteo: fetch (%.4f,%.4f) failed, using zero fallback: %v", lat, lon, err)
		metrics.FallbackObservations.Inc()
		return models.ZeroObservation(c.clock.Now().UTC())
	}

	daily := forecast.Daily
	return models.Observation{
		Time:           c.clock.Now().UTC(),
		Precip:         latest(daily.PrecipitationSum),
		Precip3dSum:    tailSum(daily.PrecipitationSum, 3),
		Precip7dSum:    tailSum(daily.PrecipitationSum, lookbackDays),
		RiverDischarge: latest(flood.Daily.RiverDischarge),
		TempMax:        latest(daily.Temperature2mMax),
		TempMin:        latest(daily.Temperature2mMin),
		Humidity:       latest(daily.RelativeHumidity2mMax),
		Pressure:       latest(daily.SurfacePressureMax),
		WindSpeed:      latest(daily.Windspeed10mMax),
		PrecipProb:     latest(daily.PrecipitationProbabilityMean),
	}
}

func (c *Client) forecastQuery(lat, lon float64) string {
	v := url.Values{}
	v.Set("latitude", formatCoord(lat))
	v.Set("longitude", formatCoord(lon))
	v.Set("past_days", strconv.Itoa(lookbackDays))
	v.Set("daily", "precipitation_sum,precipitation_probability_mean,"+
		"temperature_2m_max,temperature_2m_min,"+
		"relative_humidity_2m_max,surface_pressure_max,windspeed_10m_max")
	v.Set("timezone", c.timezone)
	return c.forecastURL + "?" + v.Encode()
}

func (c *Client) floodQuery(lat, lon float64) string {
	v := url.Values{}
	v.Set("latitude", formatCoord(lat))
	v.Set("longitude", formatCoord(lon))
	v.Set("past_days", strconv.Itoa(lookbackDays))
	v.Set("daily", "river_discharge")
	v.Set("timezone", c.timezone)
	return c.floodURL + "?" + v.Encode()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// getJSON performs one resilient GET: circuit breaker around the call,
// retries on rate limits and server errors, everything bounded by the
// per-call timeout.
func (c *Client) getJSON(ctx context.Context, endpoint string, cb *gobreaker.CircuitBreaker, u string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body []byte
	operation := func() error {
		raw, err := cb.Execute(func() (interface{}, error) {
			return c.get(ctx, endpoint, u)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = raw.([]byte)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 1 * time.Second
	bo.MaxElapsedTime = c.timeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: unmarshal: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.OracleLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OracleCallsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, backoff.Permanent(fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()
	metrics.OracleCallsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// latest returns the newest value of a daily series, treating a missing or
// null tail as 0 per the safe-zero policy.
func latest(xs []*float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return deref(xs[len(xs)-1])
}

// tailSum sums the trailing n values; short series sum whatever is
// available, with no padding.
func tailSum(xs []*float64, n int) float64 {
	start := len(xs) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, x := range xs[start:] {
		sum += deref(x)
	}
	return sum
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
