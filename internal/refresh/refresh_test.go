package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/shiroonigami23-ui/market-intelligence/internal/aggregate"
	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
	"github.com/shiroonigami23-ui/market-intelligence/internal/store"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

var asOf = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newRefresher(w *captureWriter, scopes []contracts.Scope) *Refresher {
	snap := store.NewSnapshot(nil, []contracts.ForecastRecord{
		{IndustryID: "agriculture", Region: "north", MetricName: "wheat.production", Prediction: 12, ConfidenceInterval: 0.9},
		{IndustryID: "agriculture", Region: "south", MetricName: "rice.production", Prediction: 4, ConfidenceInterval: 0.7},
		{IndustryID: "housing", Region: "south", MetricName: "lumber.production", Prediction: -3, ConfidenceInterval: 0.5},
	})
	return &Refresher{
		Metrics:    snap,
		Forecasts:  snap,
		Aggregator: aggregate.New(risk.DefaultGrowthPolicy()),
		Scorer:     risk.NewScorer(risk.DefaultScoreBands()),
		Writer:     w,
		Collectors: metrics.New(),
		Log:        zerolog.New(io.Discard),
		Scopes:     scopes,
	}
}

func TestOncePublishesEveryRegion(t *testing.T) {
	w := &captureWriter{}
	got, err := newRefresher(w, nil).Once(context.Background(), asOf)
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	if len(got) != 2 || len(w.msgs) != 2 {
		t.Fatalf("expected two regions published, got %d summaries %d messages", len(got), len(w.msgs))
	}
	if string(w.msgs[0].Key) != "*|north" {
		t.Fatalf("unexpected key %q", w.msgs[0].Key)
	}

	var s contracts.RegionRiskSummary
	if err := json.Unmarshal(w.msgs[1].Value, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Scope.Region != "south" || s.GrowthPct != 0.5 || s.RiskLevel != contracts.LevelMedium {
		t.Fatalf("unexpected south summary %+v", s)
	}
	if !s.ComputedAt.Equal(asOf) {
		t.Fatalf("computed_at %v, want %v", s.ComputedAt, asOf)
	}
}

func TestOnceUsesConfiguredScopes(t *testing.T) {
	w := &captureWriter{}
	scopes := []contracts.Scope{{IndustryID: "housing"}}
	got, err := newRefresher(w, scopes).Once(context.Background(), asOf)
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	if len(got) != 1 || got[0].RiskLevel != contracts.LevelHigh {
		t.Fatalf("expected one high housing summary, got %+v", got)
	}
	if string(w.msgs[0].Key) != "housing|*" {
		t.Fatalf("unexpected key %q", w.msgs[0].Key)
	}
}

func TestOncePublishFailure(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	if _, err := newRefresher(w, nil).Once(context.Background(), asOf); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	for _, interval := range []time.Duration{time.Hour, 0, -time.Second} {
		r := newRefresher(&captureWriter{}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			r.Run(ctx, interval)
			close(done)
		}()

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("interval %v: run did not stop after cancel", interval)
		}
	}
}
