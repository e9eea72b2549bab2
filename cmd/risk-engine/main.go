package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiroonigami23-ui/market-intelligence/internal/aggregate"
	"github.com/shiroonigami23-ui/market-intelligence/internal/config"
	"github.com/shiroonigami23-ui/market-intelligence/internal/httpx"
	"github.com/shiroonigami23-ui/market-intelligence/internal/logging"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/mq"
	"github.com/shiroonigami23-ui/market-intelligence/internal/refresh"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
	"github.com/shiroonigami23-ui/market-intelligence/internal/storage"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New("risk-engine", cfg.LogLevel)
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

	repo := storage.NewRepository(dbPool)

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicSummaries)
	defer writer.Close()

	collectors := metrics.New()
	refresher := &refresh.Refresher{
		Metrics:    repo,
		Forecasts:  repo,
		Aggregator: aggregate.New(cfg.Model.Growth),
		Scorer:     risk.NewScorer(cfg.Model.ScoreBands),
		Writer:     writer,
		Collectors: collectors,
		Log:        logger,
		Scopes:     cfg.Model.Scopes,
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "risk-engine"})
	})
	router.Handle("/metrics", collectors.Handler())

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

	go refresher.Run(ctx, cfg.RefreshInterval)

	logger.Info().
		Str("topic", cfg.KafkaTopicSummaries).
		Dur("interval", cfg.RefreshInterval).
		Int("scopes", len(cfg.Model.Scopes)).
		Msg("risk-engine started")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}
