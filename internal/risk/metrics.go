package risk

import (
	"sort"
	"time"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

// TopRisk is one entry in the dashboard's highest-risk-users list.
type TopRisk struct {
	UserID      string  `json:"user_id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	RiskScore   float64 `json:"risk_score"`
	RiskLevel   string  `json:"risk_level"`
	AccessLevel string  `json:"access_level"`
}

// DashboardStats is the fleet-wide security posture summary for the admin
// dashboard.
type DashboardStats struct {
	TotalUsers         int       `json:"total_users"`
	ActiveUsers        int       `json:"active_users"`
	CriticalRisks      int       `json:"critical_risks"`
	SuspiciousSessions int       `json:"suspicious_sessions"`
	BlockedAccounts    int       `json:"blocked_accounts"`
	RecentAlerts       int       `json:"recent_alerts"`
	Incidents24h       int       `json:"incidents_24h"`
	AvgRiskScore       float64   `json:"avg_risk_score"`
	AttackAttempts     int       `json:"attack_attempts"`
	ResolvedByAdmin    int       `json:"resolved_by_admin"`
	TopRisks           []TopRisk `json:"top_risks"`
}

// ComputeDashboard scans the store and derives the dashboard metrics.
// Thresholds: a user is a critical risk above 0.6, a session is suspicious
// at login risk 0.3+, a session is active within the last 30 minutes.
func ComputeDashboard(db *docstore.Store) DashboardStats {
	now := time.Now().UTC()
	users := db.C(domain.ColUsers).Find(nil).All()
	sessions := db.C(domain.ColSessions).Find(docstore.Query{"revoked": false}).All()

	stats := DashboardStats{TotalUsers: len(users)}

	sumScores := 0.0
	for _, u := range users {
		score := docstore.F64(u, "risk_score")
		sumScores += score
		if score > 0.6 {
			stats.CriticalRisks++
		}
		if docstore.Str(u, "access_level") == string(domain.AccessBlocked) || !docstore.BoolOr(u, "is_active", true) {
			stats.BlockedAccounts++
		}
	}
	if len(users) > 0 {
		stats.AvgRiskScore = round4(sumScores / float64(len(users)))
	}

	activeCutoff := now.Add(-30 * time.Minute)
	for _, s := range sessions {
		if last, ok := docstore.Time(s, "last_activity"); ok && !last.Before(activeCutoff) {
			stats.ActiveUsers++
		}
		if docstore.F64(s, "risk_at_login") >= 0.3 {
			stats.SuspiciousSessions++
		}
	}

	dayAgo := now.Add(-24 * time.Hour)
	stats.RecentAlerts = db.C(domain.ColAlerts).CountDocuments(docstore.Query{"timestamp": docstore.Gte(dayAgo)})
	stats.Incidents24h = db.C(domain.ColIncidents).CountDocuments(docstore.Query{"timestamp": docstore.Gte(dayAgo)})
	stats.AttackAttempts = db.C(domain.ColIncidents).CountDocuments(docstore.Query{
		"incident_type": docstore.In(domain.IncidentSimulatedAttack, domain.IncidentHighRiskSession),
	})
	stats.ResolvedByAdmin = db.C(domain.ColAuditTrail).CountDocuments(docstore.Query{
		"action": docstore.In("mark_safe", "unblock", "dismiss_alert", "resolve_incident"),
	})

	stats.TopRisks = topRisks(users, 5)
	return stats
}

// topRisks returns the n highest-risk users, descending.
func topRisks(users []docstore.Document, n int) []TopRisk {
	sorted := make([]docstore.Document, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return docstore.F64(sorted[i], "risk_score") > docstore.F64(sorted[j], "risk_score")
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]TopRisk, 0, len(sorted))
	for _, u := range sorted {
		score := docstore.F64(u, "risk_score")
		out = append(out, TopRisk{
			UserID:      docstore.Str(u, docstore.IDField),
			Email:       docstore.Str(u, "email"),
			Name:        docstore.Str(u, "name"),
			Role:        docstore.StrOr(u, "role", domain.RoleUser),
			RiskScore:   score,
			RiskLevel:   domain.RiskLevel(score * 100),
			AccessLevel: docstore.StrOr(u, "access_level", string(domain.AccessFull)),
		})
	}
	return out
}
