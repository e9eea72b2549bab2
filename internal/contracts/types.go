package contracts

import "time"

// Level is shared by risk classification (low, medium, high) and alert
// severity (low through critical).
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return true
	default:
		return false
	}
}

// Weight orders levels from least to most severe; unknown levels weigh 0.
func (l Level) Weight() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelCritical:
		return 4
	default:
		return 0
	}
}

type MetricObservation struct {
	IndustryID string    `json:"industry_id"`
	Region     string    `json:"region"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Timestamp  time.Time `json:"timestamp"`
}

type ForecastRecord struct {
	IndustryID         string    `json:"industry_id"`
	Region             string    `json:"region"`
	MetricName         string    `json:"metric_name"`
	ForecastDate       time.Time `json:"forecast_date"`
	Prediction         float64   `json:"prediction"`
	ConfidenceInterval float64   `json:"confidence_interval"`
	ModelID            string    `json:"model_id"`
}

// Scope narrows a summary; empty fields match everything.
type Scope struct {
	IndustryID string `json:"industry_id,omitempty" yaml:"industry_id"`
	Region     string `json:"region,omitempty" yaml:"region"`
}

func (s Scope) Matches(industryID, region string) bool {
	if s.IndustryID != "" && s.IndustryID != industryID {
		return false
	}
	if s.Region != "" && s.Region != region {
		return false
	}
	return true
}

func (s Scope) Key() string {
	industry, region := s.IndustryID, s.Region
	if industry == "" {
		industry = "*"
	}
	if region == "" {
		region = "*"
	}
	return industry + "|" + region
}

type RegionRiskSummary struct {
	Scope            Scope     `json:"scope"`
	RiskLevel        Level     `json:"risk_level"`
	GrowthPct        float64   `json:"growth_pct"`
	SampleCount      int       `json:"sample_count"`
	ObservationCount int       `json:"observation_count"`
	AvgConfidence    float64   `json:"avg_confidence"`
	ComputedAt       time.Time `json:"computed_at"`
}

type CommodityMetric struct {
	Name        string  `json:"name"`
	Production  float64 `json:"production"`
	MarketValue float64 `json:"market_value"`
	ForecastPct float64 `json:"forecast_pct"`
	Confidence  float64 `json:"confidence"`
	Risk        Level   `json:"risk"`
}

type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ScenarioParams struct {
	SupplyShock   float64 `json:"supply_shock" yaml:"supply_shock"`
	ClimateImpact float64 `json:"climate_impact" yaml:"climate_impact"`
	DemandShift   float64 `json:"demand_shift" yaml:"demand_shift"`
	PolicyChange  float64 `json:"policy_change" yaml:"policy_change"`
}

type RuleState string

const (
	StateInactive  RuleState = "inactive"
	StateArmed     RuleState = "armed"
	StateTriggered RuleState = "triggered"
)

// Binding names the live metric a rule watches. Empty fields match any value.
type Binding struct {
	IndustryID string `json:"industry_id,omitempty"`
	Region     string `json:"region,omitempty"`
	MetricName string `json:"metric_name,omitempty"`
}

func (b Binding) Matches(o MetricObservation) bool {
	if b.IndustryID != "" && b.IndustryID != o.IndustryID {
		return false
	}
	if b.Region != "" && b.Region != o.Region {
		return false
	}
	if b.MetricName != "" && b.MetricName != o.MetricName {
		return false
	}
	return true
}

type AlertRule struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	ConditionDescription string     `json:"condition_description"`
	Operator             string     `json:"comparison_operator"`
	Threshold            float64    `json:"threshold"`
	Severity             Level      `json:"severity"`
	IsActive             bool       `json:"is_active"`
	State                RuleState  `json:"state"`
	Breaching            bool       `json:"breaching"`
	LastTriggeredAt      *time.Time `json:"last_triggered_at,omitempty"`
	Binding              Binding    `json:"binding"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AlertNotification is handed to the notification collaborator on every
// transition into the triggered state.
type AlertNotification struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Level     `json:"severity"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
	Operator    string    `json:"comparison_operator"`
	TriggeredAt time.Time `json:"triggered_at"`
}

func (o MetricObservation) Key() string {
	return o.IndustryID + "|" + o.Region + "|" + o.MetricName
}
