package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/kdpalma/floodwatch/internal/api"
	"github.com/kdpalma/floodwatch/internal/httputil"
	"github.com/kdpalma/floodwatch/internal/locations"
	"github.com/kdpalma/floodwatch/internal/openmeteo"
	"github.com/kdpalma/floodwatch/internal/predict"
	"github.com/kdpalma/floodwatch/internal/snapshot"
	"github.com/kdpalma/floodwatch/internal/store"
)

var cli struct {
	Port      string `env:"PORT" default:"8080" help:"HTTP server port."`
	DB        string `env:"FLOODWATCH_DB" default:"data/floodwatch.db" help:"Path to the SQLite database."`
	ModelDir  string `env:"MODEL_DIR" default:"models" help:"Directory holding the exported model artifacts."`
	Locations string `env:"LOCATIONS_CSV" default:"data/barangays.csv" help:"CSV of barangay coordinates."`

	ForecastURL string        `env:"FORECAST_URL" default:"${forecast_url}" help:"Open-Meteo forecast endpoint."`
	FloodURL    string        `env:"FLOOD_URL" default:"${flood_url}" help:"Open-Meteo flood endpoint."`
	Timezone    string        `env:"OPENMETEO_TZ" default:"Asia/Manila" help:"Timezone sent to Open-Meteo."`
	Timeout     time.Duration `env:"FETCH_TIMEOUT" default:"10s" help:"Per-location fetch timeout."`

	Schedule   string `env:"SNAPSHOT_SCHEDULE" default:"0 * * * *" help:"Cron schedule for background snapshots."`
	NoSnapshot bool   `help:"Disable the background snapshot job (server only, for local dev)."`
	Once       bool   `help:"Run one prediction pass, print it, and exit."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("floodwatch"),
		kong.Description("Barangay flood risk prediction service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.Vars{
			"forecast_url": openmeteo.DefaultForecastURL,
			"flood_url":    openmeteo.DefaultFloodURL,
		},
	)
	kctx.FatalIfErrorf(run())
}

func run() error {
	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		return err
	}
	log.Println("database migrated")

	locs, err := locations.Load(cli.Locations)
	if err != nil {
		return err
	}
	for i, loc := range locs {
		if err := st.UpsertLocation(loc, i); err != nil {
			return err
		}
	}
	log.Printf("%d locations loaded from %s", len(locs), cli.Locations)

	// Missing or corrupt artifacts degrade the service instead of killing
	// it: the API answers 503 on /predict_all until models are fixed and
	// the process restarted.
	var scorer *predict.Scorer
	artifacts, err := predict.Load(cli.ModelDir)
	if err != nil {
		log.Printf("load models from %s: %v (starting degraded)", cli.ModelDir, err)
		scorer = predict.NewScorer(nil)
	} else {
		scorer = predict.NewScorer(artifacts)
		log.Printf("models loaded from %s", cli.ModelDir)
	}

	client := openmeteo.NewClient(httputil.NewClient(), openmeteo.Config{
		ForecastURL: cli.ForecastURL,
		FloodURL:    cli.FloodURL,
		Timezone:    cli.Timezone,
		Timeout:     cli.Timeout,
	})

	server := api.NewServer(st, client, scorer, locs, cli.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cli.Once {
		rows, err := server.RunPrediction(ctx, "cli")
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if !cli.NoSnapshot {
		sched := snapshot.New(cli.Schedule, func(ctx context.Context) error {
			_, err := server.RunPrediction(ctx, "snapshot")
			return err
		})
		go sched.Start(ctx)
	} else {
		log.Println("snapshot job disabled (--no-snapshot)")
	}

	log.Printf("starting server on :%s", cli.Port)
	return server.Run(ctx)
}
