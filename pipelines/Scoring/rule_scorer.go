package scoring

import (
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
)

// Risk labels produced by both scoring paths
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// Derived column names appended to scored rows
const (
	ColumnChurnScore = "churn_score"
	ColumnRiskLevel  = "risk_level"
)

// RuleConfig holds the rule-based scoring thresholds
type RuleConfig struct {
	InactiveDays float64 `json:"inactive_days"` // last_active_days above this is at risk
	MinOrders    float64 `json:"min_orders"`    // orders below this is at risk
	MinSessions  float64 `json:"min_sessions"`  // total_sessions below this is at risk
}

// DefaultRuleConfig returns the stock thresholds: 14 days inactive,
// fewer than 1 order, fewer than 3 sessions.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		InactiveDays: 14,
		MinOrders:    1,
		MinSessions:  3,
	}
}

// Scored is the rule path's output for one record
type Scored struct {
	ChurnScore int    `json:"churn_score"`
	RiskLevel  string `json:"risk_level"`
}

// Score computes the rule-based churn score for one row. Each of the three
// indicators contributes one point when its condition holds. A field that is
// unmapped, empty, or non-numeric contributes nothing: absence is read as
// "not at risk", never an error, so scoring is a total function.
func Score(row map[string]any, mapping *schema.Mapping, cfg RuleConfig) Scored {
	score := 0

	if days, ok := mapping.Numeric(row, schema.FieldLastActiveDays); ok && days > cfg.InactiveDays {
		score++
	}
	if orders, ok := mapping.Numeric(row, schema.FieldOrders); ok && orders < cfg.MinOrders {
		score++
	}
	if sessions, ok := mapping.Numeric(row, schema.FieldTotalSessions); ok && sessions < cfg.MinSessions {
		score++
	}

	return Scored{ChurnScore: score, RiskLevel: RiskLevelForScore(score)}
}

// RiskLevelForScore maps a churn score onto its categorical label:
// 0 -> Low, 1 -> Medium, 2 or more -> High.
func RiskLevelForScore(score int) string {
	switch {
	case score >= 2:
		return RiskHigh
	case score == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}
