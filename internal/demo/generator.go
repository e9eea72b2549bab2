// Package demo produces randomized observations and forecasts for demo
// dashboards and manual testing. Output is intentionally non-deterministic
// unless a fixed seed is supplied; nothing in the analytics core uses it.
package demo

import (
	"math/rand"
	"time"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

var (
	industries = map[string][]string{
		"mining":      {"gold", "iron", "copper"},
		"agriculture": {"wheat", "rice", "soy"},
		"housing":     {"lumber", "cement"},
	}
	regions = []string{"north", "south", "east", "west", "coastal"}
	models  = []string{"arima-v2", "prophet-v1", "ensemble-v3"}
)

type Generator struct {
	rng *rand.Rand
}

// New seeds the generator; pass 0 to seed from the clock.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Observation returns one random production or market value reading.
func (g *Generator) Observation(at time.Time) contracts.MetricObservation {
	industry := g.industry()
	commodity := g.pick(industries[industry])

	o := contracts.MetricObservation{
		IndustryID: industry,
		Region:     g.pick(regions),
		Timestamp:  at.UTC(),
	}
	if g.rng.Intn(2) == 0 {
		o.MetricName = commodity + ".production"
		o.Value = 50 + g.rng.Float64()*150
		o.Unit = "kt"
	} else {
		o.MetricName = commodity + ".market_value"
		o.Value = 500 + g.rng.Float64()*4500
		o.Unit = "usd_m"
	}
	return o
}

func (g *Generator) Forecast(at time.Time) contracts.ForecastRecord {
	industry := g.industry()
	commodity := g.pick(industries[industry])

	return contracts.ForecastRecord{
		IndustryID:         industry,
		Region:             g.pick(regions),
		MetricName:         commodity + ".production",
		ForecastDate:       at.UTC().AddDate(0, 1+g.rng.Intn(12), 0),
		Prediction:         -15 + g.rng.Float64()*35,
		ConfidenceInterval: 0.5 + g.rng.Float64()*0.5,
		ModelID:            g.pick(models),
	}
}

// Batch returns n observations and n forecasts stamped around at.
func (g *Generator) Batch(n int, at time.Time) ([]contracts.MetricObservation, []contracts.ForecastRecord) {
	obs := make([]contracts.MetricObservation, 0, n)
	fc := make([]contracts.ForecastRecord, 0, n)
	for i := 0; i < n; i++ {
		ts := at.Add(-time.Duration(g.rng.Intn(24*60)) * time.Minute)
		obs = append(obs, g.Observation(ts))
		fc = append(fc, g.Forecast(ts))
	}
	return obs, fc
}

func (g *Generator) industry() string {
	names := []string{"agriculture", "housing", "mining"}
	return g.pick(names)
}

func (g *Generator) pick(items []string) string {
	return items[g.rng.Intn(len(items))]
}
