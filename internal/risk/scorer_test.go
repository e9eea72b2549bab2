package risk

import (
	"testing"

	"github.com/shiroonigami23-ui/market-intelligence/internal/contracts"
)

func TestOverallScoreMixedLevels(t *testing.T) {
	s := NewScorer(DefaultScoreBands())
	score := s.OverallScore([]contracts.Level{contracts.LevelLow, contracts.LevelMedium, contracts.LevelHigh})
	if score != 66.7 {
		t.Fatalf("expected 66.7, got %v", score)
	}
	if got := s.Classify(score); got != contracts.LevelMedium {
		t.Fatalf("expected medium, got %s", got)
	}
}

func TestOverallScoreEmpty(t *testing.T) {
	s := NewScorer(DefaultScoreBands())
	if score := s.OverallScore(nil); score != 0 {
		t.Fatalf("expected 0 for no entities, got %v", score)
	}
}

func TestOverallScoreMonotonic(t *testing.T) {
	s := NewScorer(DefaultScoreBands())
	base := []contracts.Level{
		contracts.LevelLow, contracts.LevelLow, contracts.LevelMedium,
		contracts.LevelLow, contracts.LevelHigh, contracts.LevelMedium,
	}

	for i, l := range base {
		if l != contracts.LevelLow {
			continue
		}
		swapped := append([]contracts.Level(nil), base...)
		swapped[i] = contracts.LevelHigh

		before := s.OverallScore(base)
		after := s.OverallScore(swapped)
		if after < before {
			t.Fatalf("swap at %d decreased score: %v -> %v", i, before, after)
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	s := NewScorer(DefaultScoreBands())
	cases := []struct {
		score float64
		want  contracts.Level
	}{
		{0, contracts.LevelLow},
		{40, contracts.LevelLow},
		{40.1, contracts.LevelMedium},
		{70, contracts.LevelMedium},
		{70.1, contracts.LevelHigh},
		{100, contracts.LevelHigh},
	}
	for _, tc := range cases {
		if got := s.Classify(tc.score); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestGrowthPolicyBoundaries(t *testing.T) {
	p := DefaultGrowthPolicy()
	cases := []struct {
		growth float64
		want   contracts.Level
	}{
		{-3, contracts.LevelHigh},
		{0, contracts.LevelHigh},
		{0.1, contracts.LevelMedium},
		{10, contracts.LevelMedium},
		{10.5, contracts.LevelLow},
	}
	for _, tc := range cases {
		if got := p.Classify(tc.growth); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.growth, got, tc.want)
		}
	}
}

func TestAverageConfidence(t *testing.T) {
	s := NewScorer(DefaultScoreBands())
	if got := s.AverageConfidence(nil); got != 0 {
		t.Fatalf("expected 0 for no forecasts, got %v", got)
	}

	forecasts := []contracts.ForecastRecord{
		{ConfidenceInterval: 0.8},
		{ConfidenceInterval: 0.9},
		{ConfidenceInterval: 1.4},
	}
	// 1.4 is clamped to 1.0
	if got := s.AverageConfidence(forecasts); got != 90 {
		t.Fatalf("expected 90, got %v", got)
	}
}

func TestAssess(t *testing.T) {
	s := NewScorer(DefaultScoreBands())
	a := s.Assess([]contracts.RegionRiskSummary{
		{RiskLevel: contracts.LevelHigh},
		{RiskLevel: contracts.LevelHigh},
		{RiskLevel: contracts.LevelHigh},
	})
	if a.Score != 100 || a.Level != contracts.LevelHigh {
		t.Fatalf("unexpected assessment %+v", a)
	}
	if a.Counts[contracts.LevelHigh] != 3 || a.EntityCount != 3 {
		t.Fatalf("unexpected counts %+v", a.Counts)
	}
	if a.Recommendation == "" {
		t.Fatal("expected recommendation")
	}
	if a.Severity != contracts.LevelHigh {
		t.Fatalf("expected high severity, got %s", a.Severity)
	}
}

func TestSeverityFor(t *testing.T) {
	cases := map[contracts.Level]contracts.Level{
		contracts.LevelLow:      contracts.LevelLow,
		contracts.LevelMedium:   contracts.LevelMedium,
		contracts.LevelHigh:     contracts.LevelHigh,
		contracts.LevelCritical: contracts.LevelCritical,
		"":                      contracts.LevelLow,
		"severe":                contracts.LevelLow,
	}
	for in, want := range cases {
		if got := SeverityFor(in); got != want {
			t.Fatalf("SeverityFor(%q) = %s, want %s", in, got, want)
		}
	}
}
