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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/shiroonigami23-ui/market-intelligence/internal/config"
	"github.com/shiroonigami23-ui/market-intelligence/internal/demo"
	"github.com/shiroonigami23-ui/market-intelligence/internal/httpx"
	"github.com/shiroonigami23-ui/market-intelligence/internal/logging"
	"github.com/shiroonigami23-ui/market-intelligence/internal/mq"
	"github.com/shiroonigami23-ui/market-intelligence/internal/storage"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New("demo-feed", cfg.LogLevel)
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

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicObservations)
	defer writer.Close()

	feed := &demo.Feed{
		Gen:    demo.New(0),
		Sink:   storage.NewRepository(dbPool),
		Writer: writer,
	}

	if cfg.DemoTick > 0 {
		go runTicker(ctx, feed, cfg.DemoTick, logger)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "demo-feed"})
	})

	router.Post("/v1/simulate", func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Count int `json:"count"`
		}{Count: 10}
		if r.ContentLength != 0 {
			if err := httpx.DecodeJSON(w, r, &body); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, err)
				return
			}
		}

		sent, err := feed.Emit(r.Context(), body.Count, time.Now().UTC())
		if err != nil {
			logger.Error().Err(err).Int("published", sent).Msg("simulate failed")
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"requested": body.Count, "published": sent})
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

	logger.Info().Str("addr", cfg.HTTPAddr).Dur("tick", cfg.DemoTick).Msg("demo-feed listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runTicker(ctx context.Context, feed *demo.Feed, tick time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := feed.Emit(ctx, 5, now.UTC()); err != nil {
				logger.Error().Err(err).Msg("demo tick failed")
			}
		}
	}
}
