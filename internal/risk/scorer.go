package risk

import (
	"math"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

const maxWeight = 3

type Scorer struct {
	bands ScoreBands
}

func NewScorer(bands ScoreBands) *Scorer {
	return &Scorer{bands: bands}
}

// OverallScore weights high=3, medium=2, low=1 and normalizes by the maximum
// possible weight, as a percentage rounded to one decimal. Levels outside
// low/medium/high contribute nothing but still count toward the denominator.
func (s *Scorer) OverallScore(levels []contracts.Level) float64 {
	if len(levels) == 0 {
		return 0
	}

	total := 0
	for _, l := range levels {
		w := l.Weight()
		if w > maxWeight {
			w = maxWeight
		}
		total += w
	}

	return round1(float64(total) / float64(len(levels)*maxWeight) * 100)
}

func (s *Scorer) Classify(score float64) contracts.Level {
	return s.bands.Classify(score)
}

// AverageConfidence is the mean confidence_interval of the forecasts as a
// percentage. It is an approximate "model accuracy" indicator for display;
// it is not a statistical guarantee and must not be treated as a calibrated
// probability.
func (s *Scorer) AverageConfidence(forecasts []contracts.ForecastRecord) float64 {
	if len(forecasts) == 0 {
		return 0
	}

	sum := 0.0
	for _, f := range forecasts {
		sum += clamp(f.ConfidenceInterval, 0, 1)
	}
	return round1(sum / float64(len(forecasts)) * 100)
}

type Assessment struct {
	Score          float64                 `json:"score"`
	Level          contracts.Level         `json:"level"`
	Counts         map[contracts.Level]int `json:"counts"`
	EntityCount    int                     `json:"entity_count"`
	Recommendation string                  `json:"recommendation"`
	Severity       contracts.Level         `json:"severity"`
}

// Assess rolls entity summaries up into one overall score and classification.
func (s *Scorer) Assess(summaries []contracts.RegionRiskSummary) Assessment {
	levels := make([]contracts.Level, 0, len(summaries))
	counts := map[contracts.Level]int{
		contracts.LevelLow:    0,
		contracts.LevelMedium: 0,
		contracts.LevelHigh:   0,
	}
	for _, sm := range summaries {
		levels = append(levels, sm.RiskLevel)
		counts[sm.RiskLevel]++
	}

	score := s.OverallScore(levels)
	level := s.Classify(score)
	return Assessment{
		Score:          score,
		Level:          level,
		Counts:         counts,
		EntityCount:    len(summaries),
		Recommendation: recommendation(level),
		Severity:       SeverityFor(level),
	}
}

// SeverityFor maps a risk level onto the alert severity scale.
func SeverityFor(level contracts.Level) contracts.Level {
	if level.Valid() {
		return level
	}
	return contracts.LevelLow
}

func recommendation(level contracts.Level) string {
	switch level {
	case contracts.LevelHigh:
		return "High risk: review exposure across affected regions and prepare supply alternatives."
	case contracts.LevelMedium:
		return "Moderate risk: monitor forecasts closely and revisit scenario assumptions."
	default:
		return "Low risk: continue monitoring with standard cadence."
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
