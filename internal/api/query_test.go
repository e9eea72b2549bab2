package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/shiroonigami23-ui/market-intelligence/internal/aggregate"
	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
	"github.com/shiroonigami23-ui/market-intelligence/internal/scenario"
	"github.com/shiroonigami23-ui/market-intelligence/internal/store"
)

var fixedNow = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func testSnapshot() *store.Snapshot {
	fc := func(region, metric string, prediction, confidence float64) contracts.ForecastRecord {
		return contracts.ForecastRecord{
			IndustryID:         "mining",
			Region:             region,
			MetricName:         metric,
			ForecastDate:       fixedNow,
			Prediction:         prediction,
			ConfidenceInterval: confidence,
			ModelID:            "prophet-v1",
		}
	}
	obs := []contracts.MetricObservation{
		{IndustryID: "mining", Region: "west", MetricName: "gold.production", Value: 120, Unit: "t", Timestamp: fixedNow.Add(-time.Hour)},
		{IndustryID: "mining", Region: "west", MetricName: "gold.market_value", Value: 2400, Unit: "usd", Timestamp: fixedNow.Add(-time.Hour)},
		{IndustryID: "mining", Region: "east", MetricName: "copper.production", Value: 80, Unit: "t", Timestamp: fixedNow.Add(-2 * time.Hour)},
	}
	forecasts := []contracts.ForecastRecord{
		fc("west", "gold.production", 12, 0.8),
		fc("west", "gold.production", 16, 0.6),
		fc("east", "copper.production", -2, 0.5),
	}
	return store.NewSnapshot(obs, forecasts)
}

func newQueryServer(t *testing.T, metricsStore store.MetricStore, forecastStore store.ForecastStore) (*httptest.Server, *metrics.Collectors) {
	t.Helper()
	collectors := metrics.New()
	router := NewQueryRouter(QueryDeps{
		Metrics:    metricsStore,
		Forecasts:  forecastStore,
		Aggregator: aggregate.New(risk.DefaultGrowthPolicy()),
		Scorer:     risk.NewScorer(risk.DefaultScoreBands()),
		Simulator:  scenario.New(scenario.DefaultCoefficients()),
		Collectors: collectors,
		Log:        zerolog.New(io.Discard),
		Now:        func() time.Time { return fixedNow },
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, collectors
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestSummaryEndpoint(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newQueryServer(t, snap, snap)

	var s contracts.RegionRiskSummary
	if code := getJSON(t, srv.URL+"/v1/summary?industry=mining&region=west", &s); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if s.GrowthPct != 14 || s.RiskLevel != contracts.LevelLow {
		t.Fatalf("expected 14%% growth and low risk, got %+v", s)
	}
	if s.SampleCount != 2 || s.ObservationCount != 2 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if !s.ComputedAt.Equal(fixedNow) {
		t.Fatalf("computed_at %v, want %v", s.ComputedAt, fixedNow)
	}
}

func TestRegionsAndOverall(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newQueryServer(t, snap, snap)

	var regions struct {
		Items []contracts.RegionRiskSummary `json:"items"`
	}
	getJSON(t, srv.URL+"/v1/regions?industry=mining", &regions)
	if len(regions.Items) != 2 || regions.Items[0].Scope.Region != "east" || regions.Items[1].Scope.Region != "west" {
		t.Fatalf("unexpected regions %+v", regions.Items)
	}
	if regions.Items[0].RiskLevel != contracts.LevelHigh {
		t.Fatalf("expected east high, got %s", regions.Items[0].RiskLevel)
	}

	var overall struct {
		Assessment        risk.Assessment `json:"assessment"`
		AverageConfidence float64         `json:"average_confidence"`
	}
	getJSON(t, srv.URL+"/v1/risk/overall?industry=mining", &overall)
	if overall.Assessment.Score != 66.7 || overall.Assessment.Level != contracts.LevelMedium {
		t.Fatalf("expected 66.7 medium, got %+v", overall.Assessment)
	}
	if overall.AverageConfidence != 63.3 {
		t.Fatalf("expected average confidence 63.3, got %v", overall.AverageConfidence)
	}
}

func TestRegionsCSV(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newQueryServer(t, snap, snap)

	resp, err := http.Get(srv.URL + "/v1/regions?industry=mining&format=csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %q", body)
	}
	if !strings.HasPrefix(lines[2], "mining,west,low,14.00,2,2,70.00,") {
		t.Fatalf("unexpected west row %q", lines[2])
	}
}

func TestCommoditiesEndpoint(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newQueryServer(t, snap, snap)

	var out struct {
		Items []contracts.CommodityMetric `json:"items"`
	}
	getJSON(t, srv.URL+"/v1/commodities?industry=mining", &out)
	if len(out.Items) != 2 || out.Items[0].Name != "copper" || out.Items[1].Name != "gold" {
		t.Fatalf("unexpected commodities %+v", out.Items)
	}
	gold := out.Items[1]
	if gold.Production != 120 || gold.MarketValue != 2400 || gold.ForecastPct != 14 {
		t.Fatalf("unexpected gold row %+v", gold)
	}
}

func TestScenarioEndpoint(t *testing.T) {
	snap := testSnapshot()
	srv, collectors := newQueryServer(t, snap, snap)

	body := `{"baseline":[{"timestamp":"2026-01-01T00:00:00Z","value":100},{"timestamp":"2026-02-01T00:00:00Z","value":102}],"params":{"supply_shock":10}}`
	resp, err := http.Post(srv.URL+"/v1/scenario", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out struct {
		Shift    float64                 `json:"shift"`
		Adjusted []contracts.SeriesPoint `json:"adjusted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Shift != -5 || len(out.Adjusted) != 2 || out.Adjusted[0].Value != 95 || out.Adjusted[1].Value != 97 {
		t.Fatalf("unexpected projection %+v", out)
	}
	if got := testutil.ToFloat64(collectors.ScenarioRuns.WithLabelValues("custom")); got != 1 {
		t.Fatalf("expected one custom scenario run, got %v", got)
	}
}

func TestScenarioRejectsBadInput(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newQueryServer(t, snap, snap)

	cases := map[string]string{
		"unknown field":  `{"baseline":[],"bogus":1}`,
		"unknown preset": `{"baseline":[],"preset":"meteor"}`,
		"malformed":      `{"baseline":`,
	}
	for name, body := range cases {
		resp, err := http.Post(srv.URL+"/v1/scenario", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("%s: post: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestScenarioResetAndPresets(t *testing.T) {
	snap := testSnapshot()
	srv, _ := newQueryServer(t, snap, snap)

	var reset struct {
		Params contracts.ScenarioParams `json:"params"`
	}
	getJSON(t, srv.URL+"/v1/scenario/reset", &reset)
	if reset.Params != (contracts.ScenarioParams{}) {
		t.Fatalf("expected identity params, got %+v", reset.Params)
	}

	var presets struct {
		Items map[string]contracts.ScenarioParams `json:"items"`
	}
	getJSON(t, srv.URL+"/v1/scenario/presets", &presets)
	if len(presets.Items) != len(scenario.PresetNames()) {
		t.Fatalf("expected %d presets, got %d", len(scenario.PresetNames()), len(presets.Items))
	}
}

type failingStore struct{}

func (failingStore) QueryMetrics(context.Context, store.Filter) ([]contracts.MetricObservation, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) QueryForecasts(context.Context, store.Filter) ([]contracts.ForecastRecord, error) {
	return nil, errors.New("connection refused")
}

func TestSummaryStoreFailure(t *testing.T) {
	srv, _ := newQueryServer(t, failingStore{}, failingStore{})

	var out map[string]string
	if code := getJSON(t, srv.URL+"/v1/summary", &out); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if !strings.Contains(out["error"], "query metrics") {
		t.Fatalf("expected wrapped error, got %q", out["error"])
	}
}

// countingStore records how often each store is read.
type countingStore struct {
	*store.Snapshot
	metricReads, forecastReads int
}

func (c *countingStore) QueryMetrics(ctx context.Context, f store.Filter) ([]contracts.MetricObservation, error) {
	c.metricReads++
	return c.Snapshot.QueryMetrics(ctx, f)
}

func (c *countingStore) QueryForecasts(ctx context.Context, f store.Filter) ([]contracts.ForecastRecord, error) {
	c.forecastReads++
	return c.Snapshot.QueryForecasts(ctx, f)
}

func TestOverallReadsStoreOnce(t *testing.T) {
	counted := &countingStore{Snapshot: testSnapshot()}
	srv, _ := newQueryServer(t, counted, counted)

	if code := getJSON(t, srv.URL+"/v1/risk/overall?industry=mining", nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if counted.metricReads != 1 || counted.forecastReads != 1 {
		t.Fatalf("expected one read per store, got metrics=%d forecasts=%d", counted.metricReads, counted.forecastReads)
	}
}

func TestCommoditiesCSVWithNonFiniteReading(t *testing.T) {
	snap := store.NewSnapshot(
		[]contracts.MetricObservation{
			{IndustryID: "mining", Region: "west", MetricName: "gold.production", Value: math.NaN(), Timestamp: fixedNow},
		},
		[]contracts.ForecastRecord{
			{IndustryID: "mining", Region: "west", MetricName: "gold.production", Prediction: 4, ConfidenceInterval: 0.5},
		},
	)
	srv, _ := newQueryServer(t, snap, snap)

	resp, err := http.Get(srv.URL + "/v1/commodities?industry=mining&format=csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "\ngold,0.00,0.00,") {
		t.Fatalf("unexpected csv %q", body)
	}
}
