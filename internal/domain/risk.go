package domain

// Decision is the three-valued outcome of a risk evaluation.
type Decision string

const (
	DecisionAllow          Decision = "ALLOW"
	DecisionReAuthenticate Decision = "RE_AUTHENTICATE"
	DecisionBlock          Decision = "BLOCK"
)

// FactorStatus classifies a component's raw risk: normal below 30, warning
// below 60, critical at or above 60.
type FactorStatus string

const (
	StatusNormal   FactorStatus = "normal"
	StatusWarning  FactorStatus = "warning"
	StatusCritical FactorStatus = "critical"
)

// StatusFor maps a raw component risk to its status band.
func StatusFor(raw float64) FactorStatus {
	switch {
	case raw < 30:
		return StatusNormal
	case raw < 60:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// RiskComponent is one named measurement in a risk breakdown.
type RiskComponent struct {
	Factor       string       `json:"factor"`
	RawRisk      float64      `json:"raw_risk"`
	Weight       float64      `json:"weight"`
	WeightedRisk float64      `json:"weighted_risk"`
	Explanation  string       `json:"explanation"`
	Status       FactorStatus `json:"status"`
}

// RiskResult aggregates all components into the final score and decision.
// Score is on the 0-100 scale and already clamped; the persisted per-user
// score is Score/100. Error marks a degraded fail-closed result (user or
// session missing) rather than a computed one.
type RiskResult struct {
	Score           float64         `json:"score"`
	Decision        Decision        `json:"decision"`
	DecisionDetail  string          `json:"decision_detail"`
	Multiplier      float64         `json:"multiplier"`
	Breakdown       []RiskComponent `json:"breakdown"`
	CriticalFactors int             `json:"critical_factors"`
	WarningFactors  int             `json:"warning_factors"`
	Timestamp       string          `json:"timestamp"`
	Error           string          `json:"error,omitempty"`
}

// RiskLevel labels a 0-100 score for display.
func RiskLevel(score float64) string {
	switch {
	case score <= 30:
		return "low"
	case score <= 60:
		return "medium"
	case score <= 80:
		return "high"
	default:
		return "critical"
	}
}
