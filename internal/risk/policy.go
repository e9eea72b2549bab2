package risk

import "github.com/shiroonigami23-ui/market-intelligence/internal/contracts"

// GrowthPolicy maps forecast growth to a risk level: growth above LowAbove is
// low risk, growth at or below HighAtOrBelow is high risk, anything between
// is medium.
type GrowthPolicy struct {
	LowAbove      float64 `yaml:"low_above" json:"low_above"`
	HighAtOrBelow float64 `yaml:"high_at_or_below" json:"high_at_or_below"`
}

func DefaultGrowthPolicy() GrowthPolicy {
	return GrowthPolicy{LowAbove: 10, HighAtOrBelow: 0}
}

func (p GrowthPolicy) Classify(growthPct float64) contracts.Level {
	switch {
	case growthPct > p.LowAbove:
		return contracts.LevelLow
	case growthPct <= p.HighAtOrBelow:
		return contracts.LevelHigh
	default:
		return contracts.LevelMedium
	}
}

// ScoreBands classifies an overall score: at or below LowMax is low, at or
// below MediumMax is medium, above is high.
type ScoreBands struct {
	LowMax    float64 `yaml:"low_max" json:"low_max"`
	MediumMax float64 `yaml:"medium_max" json:"medium_max"`
}

func DefaultScoreBands() ScoreBands {
	return ScoreBands{LowMax: 40, MediumMax: 70}
}

func (b ScoreBands) Classify(score float64) contracts.Level {
	switch {
	case score <= b.LowMax:
		return contracts.LevelLow
	case score <= b.MediumMax:
		return contracts.LevelMedium
	default:
		return contracts.LevelHigh
	}
}
