package domain

// AccessLevel is the adaptive access state attached to a user.
type AccessLevel string

const (
	AccessFull       AccessLevel = "full"
	AccessRestricted AccessLevel = "restricted"
	AccessBlocked    AccessLevel = "blocked"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Alert severities, ordered least to most urgent. High and critical alerts
// are forwarded to the external notifier.
const (
	SeverityLow      = "low"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident types recorded by the evaluator and the attack simulator.
const (
	IncidentHighRiskSession    = "high_risk_session"
	IncidentBehavioralAnomaly  = "behavioral_anomaly"
	IncidentGeographicAnomaly  = "geographic_anomaly"
	IncidentDownloadSpike      = "download_spike"
	IncidentUnauthorizedAccess = "unauthorized_access"
	IncidentDeviceAnomaly      = "device_anomaly"
	IncidentSimulatedAttack    = "simulated_attack"
)

// GuardResult is the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}
