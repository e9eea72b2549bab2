package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

type Collectors struct {
	Evaluations    *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	ScenarioRuns   *prometheus.CounterVec
	SummarySeconds *prometheus.HistogramVec
	RiskLevels     *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry, so
// several instances can coexist in one process (tests, embedded use).
func New() *Collectors {
	c := &Collectors{registry: prometheus.NewRegistry()}

	c.Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketintel",
		Subsystem: "alerts",
		Name:      "evaluations_total",
		Help:      "Rule evaluations by outcome (fired, quiet).",
	}, []string{"outcome"})
	c.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketintel",
		Subsystem: "alerts",
		Name:      "transitions_total",
		Help:      "Rule state changes by target state and severity.",
	}, []string{"state", "severity"})
	c.ScenarioRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketintel",
		Subsystem: "scenario",
		Name:      "runs_total",
		Help:      "Scenario projections by preset (custom when none).",
	}, []string{"preset"})
	c.SummarySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketintel",
		Subsystem: "aggregate",
		Name:      "compute_seconds",
		Help:      "Time spent computing summaries by kind.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"kind"})
	c.RiskLevels = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "marketintel",
		Subsystem: "risk",
		Name:      "scope_level",
		Help:      "Latest risk level per scope as a weight (1 low, 2 medium, 3 high).",
	}, []string{"scope"})

	c.registry.MustRegister(c.Evaluations, c.Transitions, c.ScenarioRuns, c.SummarySeconds, c.RiskLevels)
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collectors) ObserveEvaluation(fired bool) {
	outcome := "quiet"
	if fired {
		outcome = "fired"
	}
	c.Evaluations.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ObserveTransition(state contracts.RuleState, severity contracts.Level) {
	c.Transitions.WithLabelValues(string(state), string(severity)).Inc()
}

func (c *Collectors) ObserveRiskLevel(s contracts.RegionRiskSummary) {
	c.RiskLevels.WithLabelValues(s.Scope.Key()).Set(float64(s.RiskLevel.Weight()))
}
