// Package scenario projects a baseline series under a linear what-if model.
package scenario

import (
	"math"
	"sort"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

const (
	MinParam = -100
	MaxParam = 100
)

// Coefficients is the per-unit effect of each scenario parameter on every
// point of the baseline.
type Coefficients struct {
	SupplyShock   float64 `yaml:"supply_shock" json:"supply_shock"`
	ClimateImpact float64 `yaml:"climate_impact" json:"climate_impact"`
	DemandShift   float64 `yaml:"demand_shift" json:"demand_shift"`
	PolicyChange  float64 `yaml:"policy_change" json:"policy_change"`
}

func DefaultCoefficients() Coefficients {
	return Coefficients{
		SupplyShock:   -0.5,
		ClimateImpact: -0.3,
		DemandShift:   0.4,
		PolicyChange:  0.2,
	}
}

type Simulator struct {
	coef Coefficients
}

func New(coef Coefficients) *Simulator {
	return &Simulator{coef: coef}
}

func (s *Simulator) Coefficients() Coefficients {
	return s.coef
}

// Reset returns the identity parameters; Run with them reproduces the
// baseline exactly.
func (s *Simulator) Reset() contracts.ScenarioParams {
	return contracts.ScenarioParams{}
}

// Shift is the constant offset the clamped params add to every point.
func (s *Simulator) Shift(p contracts.ScenarioParams) float64 {
	p = Clamp(p)
	return p.SupplyShock*s.coef.SupplyShock +
		p.ClimateImpact*s.coef.ClimateImpact +
		p.DemandShift*s.coef.DemandShift +
		p.PolicyChange*s.coef.PolicyChange
}

// Run returns a new series with every baseline point shifted. The baseline
// is not modified.
func (s *Simulator) Run(baseline []contracts.SeriesPoint, p contracts.ScenarioParams) []contracts.SeriesPoint {
	out := make([]contracts.SeriesPoint, len(baseline))
	if p == (contracts.ScenarioParams{}) {
		copy(out, baseline)
		return out
	}

	shift := s.Shift(p)
	for i, pt := range baseline {
		out[i] = contracts.SeriesPoint{Timestamp: pt.Timestamp, Value: pt.Value + shift}
	}
	return out
}

type Comparison struct {
	BaselineMean float64 `json:"baseline_mean"`
	AdjustedMean float64 `json:"adjusted_mean"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
}

// Compare summarizes how far an adjusted series moved from its baseline.
// DeltaPct is 0 when the baseline mean is 0.
func Compare(baseline, adjusted []contracts.SeriesPoint) Comparison {
	bm := mean(baseline)
	am := mean(adjusted)
	c := Comparison{BaselineMean: bm, AdjustedMean: am, Delta: am - bm}
	if bm != 0 {
		c.DeltaPct = math.Round((am-bm)/math.Abs(bm)*10000) / 100
	}
	return c
}

// Clamp bounds every parameter to [-100, 100]. NaN becomes 0.
func Clamp(p contracts.ScenarioParams) contracts.ScenarioParams {
	return contracts.ScenarioParams{
		SupplyShock:   clamp(p.SupplyShock),
		ClimateImpact: clamp(p.ClimateImpact),
		DemandShift:   clamp(p.DemandShift),
		PolicyChange:  clamp(p.PolicyChange),
	}
}

var presets = map[string]contracts.ScenarioParams{
	"trade-war":       {SupplyShock: 60, DemandShift: -20, PolicyChange: -30},
	"climate-crisis":  {SupplyShock: 30, ClimateImpact: 80},
	"demand-boom":     {DemandShift: 70, PolicyChange: 10},
	"policy-stimulus": {DemandShift: 20, PolicyChange: 75},
}

func Preset(name string) (contracts.ScenarioParams, bool) {
	p, ok := presets[name]
	return p, ok
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mean(series []contracts.SeriesPoint) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, pt := range series {
		sum += pt.Value
	}
	return sum / float64(len(series))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < MinParam:
		return MinParam
	case v > MaxParam:
		return MaxParam
	default:
		return v
	}
}
