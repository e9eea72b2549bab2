// Package refresh periodically recomputes scope summaries from the record
// store and publishes them for downstream consumers.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/shiroonigami23-ui/market-intelligence/internal/aggregate"
	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/mq"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
	"github.com/shiroonigami23-ui/market-intelligence/internal/store"
)

type Refresher struct {
	Metrics    store.MetricStore
	Forecasts  store.ForecastStore
	Aggregator *aggregate.Engine
	Scorer     *risk.Scorer
	Writer     mq.MessageWriter
	Collectors *metrics.Collectors
	Log        zerolog.Logger

	// Scopes to summarize each cycle. Empty means every region seen.
	Scopes []contracts.Scope
}

// Once runs a single cycle: read a snapshot, summarize, publish. Publishing
// stops at the first failed write.
func (r *Refresher) Once(ctx context.Context, asOf time.Time) ([]contracts.RegionRiskSummary, error) {
	obs, err := r.Metrics.QueryMetrics(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	fc, err := r.Forecasts.QueryForecasts(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}

	start := time.Now()
	var summaries []contracts.RegionRiskSummary
	if len(r.Scopes) > 0 {
		summaries, err = r.Aggregator.SummarizeAll(ctx, obs, fc, r.Scopes, asOf)
	} else {
		summaries, err = r.Aggregator.Regions(ctx, obs, fc, "", asOf)
	}
	r.Collectors.SummarySeconds.WithLabelValues("refresh").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	for _, s := range summaries {
		r.Collectors.ObserveRiskLevel(s)
		if err := mq.PublishJSON(ctx, r.Writer, s.Scope.Key(), s); err != nil {
			return summaries, fmt.Errorf("publish summary %s: %w", s.Scope.Key(), err)
		}
	}

	a := r.Scorer.Assess(summaries)
	r.Log.Info().
		Int("scopes", len(summaries)).
		Float64("score", a.Score).
		Str("level", string(a.Level)).
		Str("severity", string(a.Severity)).
		Msg("summaries refreshed")
	return summaries, nil
}

// DefaultInterval replaces a non-positive interval passed to Run.
const DefaultInterval = time.Minute

// Run calls Once immediately and then on every tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Once(ctx, time.Now().UTC()); err != nil {
			var kerr kafka.Error
			switch {
			case errors.Is(err, context.Canceled):
				return
			case errors.As(err, &kerr) && kerr.Temporary():
				r.Log.Warn().Err(err).Msg("kafka temporary error")
			default:
				r.Log.Error().Err(err).Msg("refresh failed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
