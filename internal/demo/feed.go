package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/mq"
)

// Sink persists generated records; storage.Repository satisfies it.
type Sink interface {
	InsertObservations(ctx context.Context, observations []contracts.MetricObservation) error
	InsertForecasts(ctx context.Context, forecasts []contracts.ForecastRecord) error
}

const MaxBatch = 500

// Feed writes generated batches to a sink and publishes each observation so
// live alert rules see it.
type Feed struct {
	Gen    *Generator
	Sink   Sink
	Writer mq.MessageWriter
}

// Emit stores n observation/forecast pairs (clamped to [1, MaxBatch]) and
// returns how many observations were published.
func (f *Feed) Emit(ctx context.Context, n int, at time.Time) (int, error) {
	if n <= 0 {
		n = 1
	}
	if n > MaxBatch {
		n = MaxBatch
	}

	obs, fc := f.Gen.Batch(n, at)
	if err := f.Sink.InsertObservations(ctx, obs); err != nil {
		return 0, err
	}
	if err := f.Sink.InsertForecasts(ctx, fc); err != nil {
		return 0, err
	}

	sent := 0
	for _, o := range obs {
		if err := mq.PublishJSON(ctx, f.Writer, o.Key(), o); err != nil {
			return sent, fmt.Errorf("publish observation: %w", err)
		}
		sent++
	}
	return sent, nil
}
