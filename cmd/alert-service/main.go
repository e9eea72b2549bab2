package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiroonigami23-ui/market-intelligence/internal/alerts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/alertsvc"
	"github.com/shiroonigami23-ui/market-intelligence/internal/api"
	"github.com/shiroonigami23-ui/market-intelligence/internal/config"
	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/logging"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/mq"
	"github.com/shiroonigami23-ui/market-intelligence/internal/rulestore"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New("alert-service", cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules, err := rulestore.Open(cfg.RulesDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("rule store error")
	}
	defer rules.Close()

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicAlerts)
	defer writer.Close()

	collectors := metrics.New()
	svc := alertsvc.New(alerts.NewEngine(), rules, mq.NewNotifier(writer), collectors, logger)
	if err := svc.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("restore rules")
	}

	reader := mq.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicObservations, cfg.ConsumerGroupPrefix+"-alert-service")
	defer reader.Close()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewAlertRouter(svc, collectors, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go mq.Consume(ctx, reader, logger.With().Str("topic", cfg.KafkaTopicObservations).Logger(),
		func(ctx context.Context, obs contracts.MetricObservation) {
			fired := svc.Observe(ctx, obs)
			logger.Debug().Str("key", obs.Key()).Float64("value", obs.Value).Int("fired", len(fired)).Msg("observation evaluated")
		})

	logger.Info().Str("addr", cfg.HTTPAddr).Str("topic", cfg.KafkaTopicObservations).Msg("alert-service listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}
