// Package export flattens core outputs into CSV for the export collaborator.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

var (
	commodityHeader = []string{"name", "production", "market_value", "forecast_pct", "confidence", "risk"}
	summaryHeader   = []string{"industry_id", "region", "risk_level", "growth_pct", "sample_count", "observation_count", "avg_confidence", "computed_at"}
)

func WriteCommodities(w io.Writer, rows []contracts.CommodityMetric) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(commodityHeader); err != nil {
		return fmt.Errorf("write commodity header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Name,
			fixed(r.Production),
			fixed(r.MarketValue),
			fixed(r.ForecastPct),
			fixed(r.Confidence),
			string(r.Risk),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write commodity %s: %w", r.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteSummaries(w io.Writer, rows []contracts.RegionRiskSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Scope.IndustryID,
			r.Scope.Region,
			string(r.RiskLevel),
			fixed(r.GrowthPct),
			fmt.Sprintf("%d", r.SampleCount),
			fmt.Sprintf("%d", r.ObservationCount),
			fixed(r.AvgConfidence),
			r.ComputedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write summary %s: %w", r.Scope.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// fixed renders v with two decimals without binary float artifacts. NaN and
// infinities render as an empty cell.
func fixed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
