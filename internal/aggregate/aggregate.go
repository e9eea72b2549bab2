// Package aggregate turns filtered observation and forecast snapshots into
// per-entity growth and risk summaries. Every function is pure: the same
// inputs always yield the same output, and nothing is retained between calls.
package aggregate

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
)

// batchSize is how many records are scanned between cancellation checks.
const batchSize = 512

const (
	MeasureProduction  = "production"
	MeasureMarketValue = "market_value"
)

type Engine struct {
	policy risk.GrowthPolicy
}

func New(policy risk.GrowthPolicy) *Engine {
	return &Engine{policy: policy}
}

// Summarize computes growth as the mean prediction of the forecasts in scope
// and derives the risk level from it. A scope with no matching forecasts
// yields zero growth and the policy's zero-growth level. The only error is
// ctx.Err() when the caller abandons the scan.
func (e *Engine) Summarize(
	ctx context.Context,
	observations []contracts.MetricObservation,
	forecasts []contracts.ForecastRecord,
	scope contracts.Scope,
	asOf time.Time,
) (contracts.RegionRiskSummary, error) {
	obsCount := 0
	for i, o := range observations {
		if err := checkpoint(ctx, i); err != nil {
			return contracts.RegionRiskSummary{}, err
		}
		if scope.Matches(o.IndustryID, o.Region) {
			obsCount++
		}
	}

	var acc accumulator
	for i, f := range forecasts {
		if err := checkpoint(ctx, i); err != nil {
			return contracts.RegionRiskSummary{}, err
		}
		if scope.Matches(f.IndustryID, f.Region) {
			acc.add(f)
		}
	}

	growth := acc.meanPrediction()
	return contracts.RegionRiskSummary{
		Scope:            scope,
		RiskLevel:        e.policy.Classify(growth),
		GrowthPct:        growth,
		SampleCount:      acc.n,
		ObservationCount: obsCount,
		AvgConfidence:    acc.meanConfidencePct(),
		ComputedAt:       asOf,
	}, nil
}

// SummarizeAll runs Summarize for each scope in order.
func (e *Engine) SummarizeAll(
	ctx context.Context,
	observations []contracts.MetricObservation,
	forecasts []contracts.ForecastRecord,
	scopes []contracts.Scope,
	asOf time.Time,
) ([]contracts.RegionRiskSummary, error) {
	out := make([]contracts.RegionRiskSummary, 0, len(scopes))
	for _, scope := range scopes {
		s, err := e.Summarize(ctx, observations, forecasts, scope, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Regions summarizes every distinct region seen for an industry, sorted by
// region name. It backs the region heatmap.
func (e *Engine) Regions(
	ctx context.Context,
	observations []contracts.MetricObservation,
	forecasts []contracts.ForecastRecord,
	industryID string,
	asOf time.Time,
) ([]contracts.RegionRiskSummary, error) {
	seen := make(map[string]struct{})
	for _, o := range observations {
		if industryID == "" || o.IndustryID == industryID {
			seen[o.Region] = struct{}{}
		}
	}
	for _, f := range forecasts {
		if industryID == "" || f.IndustryID == industryID {
			seen[f.Region] = struct{}{}
		}
	}

	regions := make([]string, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	scopes := make([]contracts.Scope, 0, len(regions))
	for _, r := range regions {
		scopes = append(scopes, contracts.Scope{IndustryID: industryID, Region: r})
	}
	return e.SummarizeAll(ctx, observations, forecasts, scopes, asOf)
}

// CommodityMetrics groups records of one industry by commodity and derives
// the same growth/risk figures per group. Metric names follow
// "<commodity>.<measure>"; a name without a dot is its own commodity.
// Production and MarketValue are the latest observed values of the
// "production" and "market_value" measures; non-finite readings are ignored.
func (e *Engine) CommodityMetrics(
	ctx context.Context,
	observations []contracts.MetricObservation,
	forecasts []contracts.ForecastRecord,
	industryID string,
) ([]contracts.CommodityMetric, error) {
	type group struct {
		production, marketValue       float64
		productionAt, marketValueAt   time.Time
		hasProduction, hasMarketValue bool
		acc                           accumulator
	}
	groups := make(map[string]*group)
	get := func(name string) *group {
		g, ok := groups[name]
		if !ok {
			g = &group{}
			groups[name] = g
		}
		return g
	}

	for i, o := range observations {
		if err := checkpoint(ctx, i); err != nil {
			return nil, err
		}
		if industryID != "" && o.IndustryID != industryID {
			continue
		}
		commodity, measure := SplitMetric(o.MetricName)
		g := get(commodity)
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			continue
		}
		switch measure {
		case MeasureProduction:
			if !g.hasProduction || !o.Timestamp.Before(g.productionAt) {
				g.production, g.productionAt, g.hasProduction = o.Value, o.Timestamp, true
			}
		case MeasureMarketValue:
			if !g.hasMarketValue || !o.Timestamp.Before(g.marketValueAt) {
				g.marketValue, g.marketValueAt, g.hasMarketValue = o.Value, o.Timestamp, true
			}
		}
	}

	for i, f := range forecasts {
		if err := checkpoint(ctx, i); err != nil {
			return nil, err
		}
		if industryID != "" && f.IndustryID != industryID {
			continue
		}
		commodity, _ := SplitMetric(f.MetricName)
		get(commodity).acc.add(f)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]contracts.CommodityMetric, 0, len(names))
	for _, name := range names {
		g := groups[name]
		growth := g.acc.meanPrediction()
		out = append(out, contracts.CommodityMetric{
			Name:        name,
			Production:  g.production,
			MarketValue: g.marketValue,
			ForecastPct: growth,
			Confidence:  g.acc.meanConfidencePct(),
			Risk:        e.policy.Classify(growth),
		})
	}
	return out, nil
}

// SplitMetric splits "gold.production" into ("gold", "production").
func SplitMetric(metric string) (commodity, measure string) {
	if i := strings.Index(metric, "."); i >= 0 {
		return metric[:i], metric[i+1:]
	}
	return metric, ""
}

type accumulator struct {
	n             int
	sumPrediction float64
	sumConfidence float64
}

func (a *accumulator) add(f contracts.ForecastRecord) {
	if math.IsNaN(f.Prediction) || math.IsInf(f.Prediction, 0) {
		return
	}
	a.n++
	a.sumPrediction += f.Prediction
	a.sumConfidence += clamp(f.ConfidenceInterval, 0, 1)
}

func (a accumulator) meanPrediction() float64 {
	if a.n == 0 {
		return 0
	}
	return round2(a.sumPrediction / float64(a.n))
}

func (a accumulator) meanConfidencePct() float64 {
	if a.n == 0 {
		return 0
	}
	return round2(a.sumConfidence / float64(a.n) * 100)
}

func checkpoint(ctx context.Context, i int) error {
	if i%batchSize != 0 {
		return nil
	}
	return ctx.Err()
}

func clamp(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
