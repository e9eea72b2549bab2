package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiroonigami23-ui/market-intelligence/internal/aggregate"
	"github.com/shiroonigami23-ui/market-intelligence/internal/api"
	"github.com/shiroonigami23-ui/market-intelligence/internal/config"
	"github.com/shiroonigami23-ui/market-intelligence/internal/logging"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
	"github.com/shiroonigami23-ui/market-intelligence/internal/scenario"
	"github.com/shiroonigami23-ui/market-intelligence/internal/storage"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New("query-api", cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database error")
	}
	defer dbPool.Close()

	if err := storage.RunMigrations(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	repo := storage.NewRepository(dbPool)

	router := api.NewQueryRouter(api.QueryDeps{
		Metrics:    repo,
		Forecasts:  repo,
		Aggregator: aggregate.New(cfg.Model.Growth),
		Scorer:     risk.NewScorer(cfg.Model.ScoreBands),
		Simulator:  scenario.New(cfg.Model.Coefficients),
		Collectors: metrics.New(),
		Log:        logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("query-api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}
