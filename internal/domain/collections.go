package domain

// Collection names. Created up front at startup; no collection is dropped at
// runtime.
const (
	ColUsers             = "users"
	ColSessions          = "sessions"
	ColSessionBehavior   = "session_behavior"
	ColBehaviorLogs      = "behavior_logs"
	ColUserActivityLogs  = "user_activity_logs"
	ColModuleSessions    = "module_sessions"
	ColRiskScoreHistory  = "risk_score_history"
	ColIncidents         = "incidents"
	ColAlerts            = "alerts"
	ColAuditTrail        = "audit_trail"
	ColApps              = "apps"
	ColUserCredentials   = "user_credentials"
	ColLoginWindows      = "login_windows"
	ColEmergencyRequests = "emergency_requests"
	ColLoginAttempts     = "login_attempts"
)

// AllCollections lists every collection the platform uses.
var AllCollections = []string{
	ColUsers, ColSessions, ColSessionBehavior, ColBehaviorLogs,
	ColUserActivityLogs, ColModuleSessions, ColRiskScoreHistory,
	ColIncidents, ColAlerts, ColAuditTrail, ColApps, ColUserCredentials,
	ColLoginWindows, ColEmergencyRequests, ColLoginAttempts,
}
