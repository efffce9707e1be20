// Package api serves flood predictions over HTTP. The server is the
// process-wide application context: model scorer, weather provider, location
// table, and history store are built once in main and injected here; request
// handlers only ever read them.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdpalma/floodwatch/internal/models"
	"github.com/kdpalma/floodwatch/internal/store"
)

// Provider fetches observations for all locations, preserving input order.
type Provider interface {
	FetchAll(ctx context.Context, locs []models.Location) []models.Observation
}

// Scorer applies the fitted models to a feature batch.
type Scorer interface {
	Loaded() bool
	Score(rows [][]float64) ([]models.PredictionResult, error)
}

type Server struct {
	store     *store.Store
	provider  Provider
	scorer    Scorer
	locations []models.Location
	port      string
	clock     clockwork.Clock
}

func NewServer(st *store.Store, provider Provider, scorer Scorer, locs []models.Location, port string) *Server {
	return &Server{
		store:     st,
		provider:  provider,
		scorer:    scorer,
		locations: locs,
		port:      port,
		clock:     clockwork.NewRealClock(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/predict_all", s.handlePredictAll)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
