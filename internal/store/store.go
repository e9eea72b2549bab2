// Package store defines the read-only boundary through which metric
// observations and forecast records reach the core.
package store

import (
	"context"
	"sort"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

// Filter selects records; empty fields match everything.
type Filter struct {
	IndustryID string
	Region     string
	MetricName string
}

func (f Filter) match(industryID, region, metric string) bool {
	if f.IndustryID != "" && f.IndustryID != industryID {
		return false
	}
	if f.Region != "" && f.Region != region {
		return false
	}
	if f.MetricName != "" && f.MetricName != metric {
		return false
	}
	return true
}

// MetricStore returns observations in ascending timestamp order.
type MetricStore interface {
	QueryMetrics(ctx context.Context, f Filter) ([]contracts.MetricObservation, error)
}

type ForecastStore interface {
	QueryForecasts(ctx context.Context, f Filter) ([]contracts.ForecastRecord, error)
}

// Snapshot is an in-memory, already-materialized view of both stores.
// It is safe for concurrent reads; callers must not mutate the slices
// passed to NewSnapshot afterwards.
type Snapshot struct {
	observations []contracts.MetricObservation
	forecasts    []contracts.ForecastRecord
}

func NewSnapshot(observations []contracts.MetricObservation, forecasts []contracts.ForecastRecord) *Snapshot {
	obs := append([]contracts.MetricObservation(nil), observations...)
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})
	return &Snapshot{
		observations: obs,
		forecasts:    append([]contracts.ForecastRecord(nil), forecasts...),
	}
}

func (s *Snapshot) QueryMetrics(ctx context.Context, f Filter) ([]contracts.MetricObservation, error) {
	out := make([]contracts.MetricObservation, 0, len(s.observations))
	for i, o := range s.observations {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if f.match(o.IndustryID, o.Region, o.MetricName) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Snapshot) QueryForecasts(ctx context.Context, f Filter) ([]contracts.ForecastRecord, error) {
	out := make([]contracts.ForecastRecord, 0, len(s.forecasts))
	for i, r := range s.forecasts {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if f.match(r.IndustryID, r.Region, r.MetricName) {
			out = append(out, r)
		}
	}
	return out, nil
}
