package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curvelab/internal/analysis"
	"curvelab/internal/config"
	"curvelab/internal/eventlog"
	"curvelab/internal/metrics"
	"curvelab/internal/persistence"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// .env file is optional
		log.Debug().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.Logging)
	log.Info().Msg("Starting curvelab - AMM pricing analysis")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Application error")
	}

	log.Info().Msg("curvelab shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize metrics
	m := metrics.New()
	if cfg.Metrics.Enabled {
		if err := m.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.Shutdown(shutdownCtx)
		}()
		log.Info().Int("port", cfg.Metrics.Port).Msg("Metrics server started")
	}

	// Route pool events to the structured log
	eventlog.New(log.Logger, m).Install()

	// Initialize persistence
	store, err := persistence.NewStore(cfg.Persistence.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("path", cfg.Persistence.SQLitePath).Msg("SQLite initialized")

	// Build pools
	manager, err := analysis.BuildPools(cfg, m)
	if err != nil {
		return err
	}
	log.Info().
		Int("pools", manager.NumPools()).
		Float64("oracle_price", cfg.Analysis.OraclePrice).
		Msg("Pools initialized")

	if !manager.ValidateAndLog() {
		log.Warn().Msg("Pool validation failed - continuing but some series may be inconsistent")
	}

	analyzer, err := analysis.New(cfg, manager, store, m)
	if err != nil {
		return err
	}

	summary, err := analyzer.Run(ctx)
	if err != nil {
		return err
	}

	for _, s := range summary.Series {
		log.Info().
			Int64("series_id", s.SeriesID).
			Str("sweep", s.Sweep).
			Str("pool", s.Pool).
			Int("points", s.Points).
			Int("domain_errors", s.DomainErrors).
			Int("convergence_errors", s.ConvergenceErrors).
			Dur("duration", s.Duration).
			Msg("Series saved")
	}

	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}
