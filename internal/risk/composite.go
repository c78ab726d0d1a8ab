package risk

import (
	"math"
	"time"

	"github.com/zerotrust/platform/internal/domain"
)

// ComponentScore is a calculator output paired with its factor name, in the
// order it should appear in the breakdown.
type ComponentScore struct {
	Factor      string
	Raw         float64
	Explanation string
}

// Composite combines component scores into the final result: weighted sum,
// clustering multiplier when several components misbehave at once, clamp to
// 100, and the three-state decision.
func Composite(components []ComponentScore) domain.RiskResult {
	breakdown := make([]domain.RiskComponent, 0, len(components))
	weightedSum := 0.0
	criticals, warnings := 0, 0

	for _, c := range components {
		w := weightFor(c.Factor)
		weighted := c.Raw * w
		weightedSum += weighted
		status := domain.StatusFor(c.Raw)
		switch status {
		case domain.StatusCritical:
			criticals++
		case domain.StatusWarning:
			warnings++
		}
		breakdown = append(breakdown, domain.RiskComponent{
			Factor:       c.Factor,
			RawRisk:      round1(c.Raw),
			Weight:       w,
			WeightedRisk: round1(weighted),
			Explanation:  c.Explanation,
			Status:       status,
		})
	}

	mult := clusteringMultiplier(criticals, warnings)
	score := clamp100(weightedSum * mult)
	decision, detail := DecisionFor(score)

	return domain.RiskResult{
		Score:           round1(score),
		Decision:        decision,
		DecisionDetail:  detail,
		Multiplier:      mult,
		Breakdown:       breakdown,
		CriticalFactors: criticals,
		WarningFactors:  warnings,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

// clusteringMultiplier boosts the score non-linearly when anomalies cluster:
// concurrent critical components are stronger evidence than any one alone.
func clusteringMultiplier(criticals, warnings int) float64 {
	switch {
	case criticals >= 3:
		return 1.5
	case criticals >= 2:
		return 1.3
	case criticals >= 1 && warnings >= 2:
		return 1.2
	default:
		return 1.0
	}
}

// DecisionFor maps a final 0-100 score to the access decision.
func DecisionFor(score float64) (domain.Decision, string) {
	switch {
	case score <= allowThreshold:
		return domain.DecisionAllow, "Access granted - risk within acceptable limits"
	case score <= reAuthThreshold:
		return domain.DecisionReAuthenticate, "Elevated risk - re-authentication required"
	default:
		return domain.DecisionBlock, "High risk - session blocked, alert generated"
	}
}

func weightFor(factor string) float64 {
	if w, ok := Weights[factor]; ok {
		return w
	}
	return defaultWeight
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
