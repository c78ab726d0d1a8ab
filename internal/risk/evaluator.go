package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/guard"
)

// Notifier forwards high and critical alerts to an external channel. Failures
// are logged and never abort an evaluation.
type Notifier interface {
	SendSecurityAlert(ctx context.Context, adminEmails []string, targetUser string, riskScore float64, details string) error
}

// EventSink publishes security events (alerts, incidents) to an external
// stream. Implementations must be non-blocking or fast.
type EventSink interface {
	PublishEvent(ctx context.Context, eventType, userID string, payload any) error
}

// Broadcaster pushes live events to connected admin dashboards.
type Broadcaster interface {
	Broadcast(event string, data any)
}

const notifierCircuitKey = "alert_notifier"

// Evaluator orchestrates a full risk evaluation: it resolves the user and
// session, builds the baseline, runs every component calculator, combines
// them, persists a history snapshot, and applies the decision's side effects
// to access-control state.
type Evaluator struct {
	db       *docstore.Store
	notifier Notifier
	events   EventSink
	hub      Broadcaster
	breaker  *guard.CircuitBreaker
	logger   *slog.Logger
}

// NewEvaluator wires an evaluator. notifier, events, and hub may be nil when
// the corresponding channel is not configured.
func NewEvaluator(db *docstore.Store, notifier Notifier, events EventSink, hub Broadcaster, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		db:       db,
		notifier: notifier,
		events:   events,
		hub:      hub,
		breaker:  guard.NewCircuitBreaker(3, 30*time.Second),
		logger:   logger,
	}
}

// Evaluate runs the full evaluation for one session. It is called
// synchronously on every login and every recorded action. A missing user or
// session fails closed with a maximal-risk result instead of an error.
//
// The store lock covers individual operations only, so two concurrent
// evaluations of the same session may interleave reads and writes; this is
// accepted behavior, not a bug to fix here.
func (e *Evaluator) Evaluate(ctx context.Context, userID, sessionID string) domain.RiskResult {
	users := e.db.C(domain.ColUsers)
	user := users.FindOne(docstore.Query{docstore.IDField: userID})
	if user == nil {
		return failClosed("User not found")
	}
	session := e.db.C(domain.ColSessions).FindOne(docstore.Query{"session_id": sessionID})
	if session == nil {
		return failClosed("Session not found")
	}

	profile := BuildUserProfile(e.db, userID)
	behavior := e.db.C(domain.ColSessionBehavior).FindOne(docstore.Query{"session_id": sessionID})
	if behavior == nil {
		behavior = docstore.Document{}
	}

	knownDevices, knownIPs := e.knownDevicesAndIPs(userID, sessionID)
	allowed := e.allowedServices(userID)

	hour := 12
	if start, ok := docstore.Time(session, "start_time"); ok {
		hour = start.UTC().Hour()
	}

	sample := BehaviorSample{
		ActionCount:          docstore.Int(behavior, "action_count"),
		DownloadCount:        docstore.Int(behavior, "download_count"),
		DurationMinutes:      docstore.F64(behavior, "duration_minutes"),
		ServiceSwitches:      docstore.Int(behavior, "service_switches"),
		FailedAccessAttempts: docstore.Int(behavior, "failed_access_attempts"),
		AccessedServices:     docstore.StrSlice(behavior, "accessed_services"),
	}

	components := make([]ComponentScore, 0, len(factorOrder))
	add := func(factor string, raw float64, explanation string) {
		components = append(components, ComponentScore{Factor: factor, Raw: raw, Explanation: explanation})
	}
	raw, expl := TimeDeviation(hour)
	add(FactorTimeDeviation, raw, expl)
	raw, expl = DeviceMismatch(docstore.StrOr(session, "device_fingerprint", "unknown"), knownDevices)
	add(FactorDeviceMismatch, raw, expl)
	raw, expl = IPLocation(docstore.StrOr(session, "ip_address", "0.0.0.0"), knownIPs)
	add(FactorIPLocation, raw, expl)
	raw, expl = BehavioralAnomaly(sample, profile)
	add(FactorBehavioralAnomaly, raw, expl)
	raw, expl = DownloadSpike(sample.DownloadCount, profile.AvgDownloads)
	add(FactorDownloadSpike, raw, expl)
	raw, expl = UnauthorizedService(sample.AccessedServices, allowed)
	add(FactorUnauthorizedService, raw, expl)
	raw, expl = LoginAttempts(loginAttemptCount(session))
	add(FactorLoginAttempts, raw, expl)

	result := Composite(components)

	e.persistSnapshot(user, userID, sessionID, result)
	e.applyDecision(ctx, user, userID, sessionID, result)

	return result
}

// knownDevicesAndIPs gathers the fingerprints and addresses of the user's
// other sessions, the reference sets for the mismatch calculators.
func (e *Evaluator) knownDevicesAndIPs(userID, sessionID string) (devices, ips []string) {
	past := e.db.C(domain.ColSessions).Find(docstore.Query{"user_id": userID}).All()
	devSeen := make(map[string]bool)
	ipSeen := make(map[string]bool)
	for _, s := range past {
		if docstore.Str(s, "session_id") == sessionID {
			continue
		}
		if d := docstore.Str(s, "device_fingerprint"); d != "" && !devSeen[d] {
			devSeen[d] = true
			devices = append(devices, d)
		}
		if ip := docstore.Str(s, "ip_address"); ip != "" && !ipSeen[ip] {
			ipSeen[ip] = true
			ips = append(ips, ip)
		}
	}
	return devices, ips
}

// allowedServices resolves the names of every app the user holds credentials
// for. A user with no credentials is unrestricted.
func (e *Evaluator) allowedServices(userID string) []string {
	creds := e.db.C(domain.ColUserCredentials).Find(docstore.Query{"user_id": userID}).All()
	var allowed []string
	for _, c := range creds {
		appID := docstore.Str(c, "app_id")
		if app := e.db.C(domain.ColApps).FindOne(docstore.Query{docstore.IDField: appID}); app != nil {
			allowed = append(allowed, docstore.StrOr(app, "name", appID))
		}
	}
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}

func loginAttemptCount(session docstore.Document) int {
	if _, ok := session["login_attempt_count"]; !ok {
		return 1
	}
	return docstore.Int(session, "login_attempt_count")
}

// persistSnapshot appends an immutable risk_score_history document and
// updates the user's stored score unconditionally. Scores persist on the
// 0-1 scale.
func (e *Evaluator) persistSnapshot(user docstore.Document, userID, sessionID string, result domain.RiskResult) {
	oldScore := docstore.F64(user, "risk_score")
	newScore := result.Score / 100.0
	now := time.Now().UTC()

	e.db.C(domain.ColRiskScoreHistory).InsertOne(docstore.Document{
		"user_id":      userID,
		"session_id":   sessionID,
		"old_score":    oldScore,
		"new_score":    newScore,
		"delta":        round4(newScore - oldScore),
		"factors":      breakdownDocs(result.Breakdown),
		"timestamp":    now,
		"triggered_by": "session_evaluation",
	})
	e.db.C(domain.ColUsers).UpdateOne(
		docstore.Query{docstore.IDField: userID},
		docstore.Set(map[string]any{"risk_score": newScore, "last_risk_recalc": now}),
	)
}

// applyDecision mutates access-control state according to the decision and
// raises incidents/alerts. ALLOW lifts a previous restriction.
func (e *Evaluator) applyDecision(ctx context.Context, user docstore.Document, userID, sessionID string, result domain.RiskResult) {
	users := e.db.C(domain.ColUsers)
	switch result.Decision {
	case domain.DecisionBlock:
		e.db.C(domain.ColSessions).UpdateOne(
			docstore.Query{"session_id": sessionID},
			docstore.Set(map[string]any{"revoked": true, "revoke_reason": "High risk"}),
		)
		users.UpdateOne(docstore.Query{docstore.IDField: userID},
			docstore.Set(map[string]any{"access_level": string(domain.AccessBlocked)}))
		e.CreateIncident(ctx, userID, domain.SeverityCritical, domain.IncidentHighRiskSession, result.DecisionDetail, result.Breakdown)
		e.CreateAlert(ctx, userID, domain.SeverityCritical, fmt.Sprintf("Session blocked - Risk %.1f/100", result.Score), &result)
	case domain.DecisionReAuthenticate:
		users.UpdateOne(docstore.Query{docstore.IDField: userID},
			docstore.Set(map[string]any{"access_level": string(domain.AccessRestricted)}))
		e.CreateAlert(ctx, userID, domain.SeverityHigh, fmt.Sprintf("Re-auth required - Risk %.1f/100", result.Score), &result)
	default:
		if docstore.Str(user, "access_level") == string(domain.AccessRestricted) {
			users.UpdateOne(docstore.Query{docstore.IDField: userID},
				docstore.Set(map[string]any{"access_level": string(domain.AccessFull)}))
		}
	}
}

// CreateIncident records a detected security event with an explanatory
// narrative built from the contributing components.
func (e *Evaluator) CreateIncident(ctx context.Context, userID, riskLevel, incidentType, description string, evidence []domain.RiskComponent) docstore.Document {
	actionTaken := "flagged"
	if riskLevel == domain.SeverityCritical {
		actionTaken = "auto_blocked"
	}
	doc := docstore.Document{
		"user_id":        userID,
		"risk_level":     riskLevel,
		"incident_type":  incidentType,
		"description":    description,
		"ai_explanation": explainIncident(incidentType, evidence),
		"evidence":       breakdownDocs(evidence),
		"timestamp":      time.Now().UTC(),
		"action_taken":   actionTaken,
		"resolved":       false,
	}
	id := e.db.C(domain.ColIncidents).InsertOne(doc)
	doc[docstore.IDField] = id

	e.publish(ctx, "incident.created", userID, doc)
	if e.hub != nil {
		e.hub.Broadcast("incident", doc)
	}
	return doc
}

// CreateAlert records an admin-facing alert and, for high/critical severity,
// forwards it to every admin through the external notifier. Notifier
// failures trip a circuit breaker but never propagate to the caller.
func (e *Evaluator) CreateAlert(ctx context.Context, userID, severity, description string, details *domain.RiskResult) docstore.Document {
	doc := docstore.Document{
		"user_id":      userID,
		"severity":     severity,
		"status":       "open",
		"description":  description,
		"timestamp":    time.Now().UTC(),
		"acknowledged": false,
	}
	if details != nil {
		doc["details"] = resultDoc(*details)
	} else {
		doc["details"] = docstore.Document{}
	}
	id := e.db.C(domain.ColAlerts).InsertOne(doc)
	doc[docstore.IDField] = id

	e.publish(ctx, "alert.created", userID, doc)
	if e.hub != nil {
		e.hub.Broadcast("alert", doc)
	}

	if severity == domain.SeverityHigh || severity == domain.SeverityCritical {
		e.notifyAdmins(ctx, userID, description, details)
	}
	return doc
}

func (e *Evaluator) notifyAdmins(ctx context.Context, userID, description string, details *domain.RiskResult) {
	if e.notifier == nil {
		return
	}
	user := e.db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: userID})
	userName := userID
	if user != nil {
		userName = docstore.StrOr(user, "name", userID)
	}
	admins := e.db.C(domain.ColUsers).Find(docstore.Query{"role": domain.RoleAdmin}).All()
	var emails []string
	for _, a := range admins {
		if email := docstore.Str(a, "email"); email != "" {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		return
	}

	score := 100.0
	if details != nil {
		score = details.Score
	}

	if res := e.breaker.Check(ctx, notifierCircuitKey); !res.Allowed {
		e.logger.Warn("alert notification skipped", "reason", res.Reason, "user_id", userID)
		return
	}
	if err := e.notifier.SendSecurityAlert(ctx, emails, userName, score, description); err != nil {
		e.breaker.RecordFailure(notifierCircuitKey)
		e.logger.Error("security alert notification failed", "error", err, "user_id", userID)
		return
	}
	e.breaker.RecordSuccess(notifierCircuitKey)
}

func (e *Evaluator) publish(ctx context.Context, eventType, userID string, payload any) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishEvent(ctx, eventType, userID, payload); err != nil {
		e.logger.Warn("security event publish failed", "event", eventType, "error", err)
	}
}

var incidentNarratives = map[string]string{
	domain.IncidentHighRiskSession:    "Multiple concurrent risk indicators exceeded the safety threshold. The session was automatically blocked per Zero Trust policy.",
	domain.IncidentBehavioralAnomaly:  "User activity deviates significantly from the established behavioral baseline.",
	domain.IncidentGeographicAnomaly:  "Login originated from an unrecognised location.",
	domain.IncidentDownloadSpike:      "Abnormal data download volume detected - possible data exfiltration.",
	domain.IncidentUnauthorizedAccess: "Access attempted to services outside assigned permissions - least-privilege violation.",
	domain.IncidentDeviceAnomaly:      "Unregistered device detected.",
	domain.IncidentSimulatedAttack:    "DEMO: This incident was generated by the attack simulation to demonstrate the Zero Trust detection pipeline.",
}

// explainIncident builds the narrative: a base explanation for the incident
// type plus a line per contributing warning/critical component.
func explainIncident(incidentType string, evidence []domain.RiskComponent) string {
	base, ok := incidentNarratives[incidentType]
	if !ok {
		base = "Security anomaly detected by the risk monitoring system."
	}
	var parts []string
	for _, c := range evidence {
		if c.Status == domain.StatusCritical || c.Status == domain.StatusWarning {
			parts = append(parts, fmt.Sprintf("- %s: %s (risk %.1f)", c.Factor, c.Explanation, c.RawRisk))
		}
	}
	if len(parts) == 0 {
		return base
	}
	return base + "\n\nContributing factors:\n" + strings.Join(parts, "\n")
}

func failClosed(reason string) domain.RiskResult {
	return domain.RiskResult{
		Score:          100,
		Decision:       domain.DecisionBlock,
		DecisionDetail: reason,
		Multiplier:     1.0,
		Error:          reason,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// breakdownDocs converts a breakdown to the document form stored in history
// snapshots, incidents, and alerts.
func breakdownDocs(breakdown []domain.RiskComponent) []any {
	out := make([]any, 0, len(breakdown))
	for _, c := range breakdown {
		out = append(out, map[string]any{
			"factor":        c.Factor,
			"raw_risk":      c.RawRisk,
			"weight":        c.Weight,
			"weighted_risk": c.WeightedRisk,
			"explanation":   c.Explanation,
			"status":        string(c.Status),
		})
	}
	return out
}

func resultDoc(r domain.RiskResult) docstore.Document {
	return docstore.Document{
		"score":            r.Score,
		"decision":         string(r.Decision),
		"decision_detail":  r.DecisionDetail,
		"multiplier":       r.Multiplier,
		"breakdown":        breakdownDocs(r.Breakdown),
		"critical_factors": r.CriticalFactors,
		"warning_factors":  r.WarningFactors,
		"timestamp":        r.Timestamp,
	}
}
