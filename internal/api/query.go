package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/shiroonigami23-ui/market-intelligence/internal/aggregate"
	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/export"
	"github.com/shiroonigami23-ui/market-intelligence/internal/httpx"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
	"github.com/shiroonigami23-ui/market-intelligence/internal/risk"
	"github.com/shiroonigami23-ui/market-intelligence/internal/scenario"
	"github.com/shiroonigami23-ui/market-intelligence/internal/store"
)

type QueryDeps struct {
	Metrics    store.MetricStore
	Forecasts  store.ForecastStore
	Aggregator *aggregate.Engine
	Scorer     *risk.Scorer
	Simulator  *scenario.Simulator
	Collectors *metrics.Collectors
	Log        zerolog.Logger
	Now        func() time.Time
}

type queryHandler struct {
	QueryDeps
}

func NewQueryRouter(d QueryDeps) http.Handler {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	h := &queryHandler{QueryDeps: d}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "query-api"})
	})
	router.Handle("/metrics", d.Collectors.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/regions", h.regions)
		r.Get("/commodities", h.commodities)
		r.Get("/risk/overall", h.overall)
		r.Post("/scenario", h.runScenario)
		r.Get("/scenario/reset", h.resetScenario)
		r.Get("/scenario/presets", h.presets)
	})

	return router
}

func (h *queryHandler) snapshot(ctx context.Context, f store.Filter) ([]contracts.MetricObservation, []contracts.ForecastRecord, error) {
	obs, err := h.Metrics.QueryMetrics(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("query metrics: %w", err)
	}
	fc, err := h.Forecasts.QueryForecasts(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("query forecasts: %w", err)
	}
	return obs, fc, nil
}

func (h *queryHandler) summary(w http.ResponseWriter, r *http.Request) {
	scope := contracts.Scope{
		IndustryID: r.URL.Query().Get("industry"),
		Region:     r.URL.Query().Get("region"),
	}
	obs, fc, err := h.snapshot(r.Context(), store.Filter{IndustryID: scope.IndustryID, Region: scope.Region})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	start := time.Now()
	s, err := h.Aggregator.Summarize(r.Context(), obs, fc, scope, h.Now())
	h.Collectors.SummarySeconds.WithLabelValues("summary").Observe(time.Since(start).Seconds())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Collectors.ObserveRiskLevel(s)
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *queryHandler) regions(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	obs, fc, err := h.snapshot(r.Context(), store.Filter{IndustryID: industry})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summaries, err := h.regionSummaries(r.Context(), obs, fc, industry)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		var buf bytes.Buffer
		if err := export.WriteSummaries(&buf, summaries); err != nil {
			h.fail(w, r, err)
			return
		}
		writeCSV(w, "regions.csv", buf.Bytes())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": summaries})
}

func (h *queryHandler) regionSummaries(
	ctx context.Context,
	obs []contracts.MetricObservation,
	fc []contracts.ForecastRecord,
	industry string,
) ([]contracts.RegionRiskSummary, error) {
	start := time.Now()
	defer func() {
		h.Collectors.SummarySeconds.WithLabelValues("regions").Observe(time.Since(start).Seconds())
	}()
	return h.Aggregator.Regions(ctx, obs, fc, industry, h.Now())
}

func (h *queryHandler) commodities(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	obs, fc, err := h.snapshot(r.Context(), store.Filter{IndustryID: industry})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	start := time.Now()
	rows, err := h.Aggregator.CommodityMetrics(r.Context(), obs, fc, industry)
	h.Collectors.SummarySeconds.WithLabelValues("commodities").Observe(time.Since(start).Seconds())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		var buf bytes.Buffer
		if err := export.WriteCommodities(&buf, rows); err != nil {
			h.fail(w, r, err)
			return
		}
		writeCSV(w, "commodities.csv", buf.Bytes())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *queryHandler) overall(w http.ResponseWriter, r *http.Request) {
	industry := r.URL.Query().Get("industry")
	obs, fc, err := h.snapshot(r.Context(), store.Filter{IndustryID: industry})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summaries, err := h.regionSummaries(r.Context(), obs, fc, industry)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"assessment":         h.Scorer.Assess(summaries),
		"average_confidence": h.Scorer.AverageConfidence(fc),
		"regions":            summaries,
	})
}

type scenarioRequest struct {
	Baseline []contracts.SeriesPoint  `json:"baseline"`
	Params   contracts.ScenarioParams `json:"params"`
	Preset   string                   `json:"preset,omitempty"`
}

func (h *queryHandler) runScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}

	params := req.Params
	label := "custom"
	if req.Preset != "" {
		p, ok := scenario.Preset(req.Preset)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("unknown preset %q", req.Preset))
			return
		}
		params, label = p, req.Preset
	}
	params = scenario.Clamp(params)

	adjusted := h.Simulator.Run(req.Baseline, params)
	h.Collectors.ScenarioRuns.WithLabelValues(label).Inc()

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"params":     params,
		"shift":      h.Simulator.Shift(params),
		"adjusted":   adjusted,
		"comparison": scenario.Compare(req.Baseline, adjusted),
	})
}

func (h *queryHandler) resetScenario(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"params":       h.Simulator.Reset(),
		"coefficients": h.Simulator.Coefficients(),
	})
}

func (h *queryHandler) presets(w http.ResponseWriter, _ *http.Request) {
	items := make(map[string]contracts.ScenarioParams)
	for _, name := range scenario.PresetNames() {
		p, _ := scenario.Preset(name)
		items[name] = p
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *queryHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	h.Log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
	httpx.WriteError(w, status, err)
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
