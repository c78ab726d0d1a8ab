package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/notify"
	"github.com/zerotrust/platform/internal/risk"
)

// AdminService serves the security-operations surface: dashboard metrics,
// user/incident/alert listings, audited admin actions, and the app access
// management (apps, per-app credentials, login windows, emergency requests).
type AdminService struct {
	db     *docstore.Store
	mailer *notify.Mailer
	logger *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(db *docstore.Store, mailer *notify.Mailer, logger *slog.Logger) *AdminService {
	return &AdminService{db: db, mailer: mailer, logger: logger}
}

// adminActions enumerates the accepted admin action names.
var adminActions = map[string]bool{
	"lock_account":     true,
	"force_logout":     true,
	"investigate":      true,
	"mark_safe":        true,
	"unblock":          true,
	"resolve_incident": true,
}

// Dashboard returns the fleet-wide risk metrics.
func (s *AdminService) Dashboard() risk.DashboardStats {
	return risk.ComputeDashboard(s.db)
}

// Users lists every user with their current risk state.
func (s *AdminService) Users() []map[string]any {
	users := s.db.C(domain.ColUsers).Find(nil).All()
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{
			"id":                     docstore.Str(u, docstore.IDField),
			"email":                  docstore.Str(u, "email"),
			"name":                   docstore.Str(u, "name"),
			"role":                   docstore.Str(u, "role"),
			"created_at":             u["created_at"],
			"risk_score":             docstore.F64(u, "risk_score"),
			"access_level":           docstore.StrOr(u, "access_level", string(domain.AccessFull)),
			"is_under_investigation": docstore.Bool(u, "is_under_investigation"),
			"is_active":              docstore.BoolOr(u, "is_active", true),
		})
	}
	return out
}

// Incidents lists the most recent incidents.
func (s *AdminService) Incidents(limit int) []map[string]any {
	if limit <= 0 {
		limit = 100
	}
	incidents := s.db.C(domain.ColIncidents).
		Find(nil).
		Sort("timestamp", docstore.Descending).
		Limit(limit).
		All()

	out := make([]map[string]any, 0, len(incidents))
	for _, i := range incidents {
		out = append(out, map[string]any{
			"id":             docstore.Str(i, docstore.IDField),
			"user_id":        docstore.Str(i, "user_id"),
			"risk_level":     docstore.Str(i, "risk_level"),
			"incident_type":  docstore.Str(i, "incident_type"),
			"description":    docstore.Str(i, "description"),
			"ai_explanation": docstore.Str(i, "ai_explanation"),
			"timestamp":      i["timestamp"],
			"action_taken":   docstore.Str(i, "action_taken"),
			"resolved":       docstore.Bool(i, "resolved"),
		})
	}
	return out
}

// Alerts lists the most recent alerts with the target user's name resolved.
func (s *AdminService) Alerts(limit int) []map[string]any {
	if limit <= 0 {
		limit = 100
	}
	alerts := s.db.C(domain.ColAlerts).
		Find(nil).
		Sort("timestamp", docstore.Descending).
		Limit(limit).
		All()

	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		userName := "Unknown"
		if u := s.db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: docstore.Str(a, "user_id")}); u != nil {
			userName = docstore.StrOr(u, "name", "Unknown")
		}
		out = append(out, map[string]any{
			"id":           docstore.Str(a, docstore.IDField),
			"user_id":      docstore.Str(a, "user_id"),
			"user_name":    userName,
			"severity":     docstore.Str(a, "severity"),
			"status":       docstore.Str(a, "status"),
			"description":  docstore.Str(a, "description"),
			"timestamp":    a["timestamp"],
			"acknowledged": docstore.Bool(a, "acknowledged"),
		})
	}
	return out
}

// ActiveSessions lists non-revoked sessions joined with their user and
// behavior documents, most recently active first.
func (s *AdminService) ActiveSessions() []map[string]any {
	sessions := s.db.C(domain.ColSessions).
		Find(docstore.Query{"revoked": false}).
		Sort("last_activity", docstore.Descending).
		All()

	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		userID := docstore.Str(sess, "user_id")
		user := s.db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: userID})
		behavior := s.db.C(domain.ColSessionBehavior).FindOne(docstore.Query{"session_id": docstore.Str(sess, "session_id")})

		row := map[string]any{
			"session_id":          docstore.Str(sess, "session_id"),
			"user_id":             userID,
			"user_name":           "Unknown",
			"user_email":          "Unknown",
			"ip_address":          docstore.Str(sess, "ip_address"),
			"device":              docstore.Str(sess, "device_fingerprint"),
			"start_time":          sess["start_time"],
			"last_activity":       sess["last_activity"],
			"expires_at":          sess["expires_at"],
			"login_attempt_count": loginAttempts(sess),
			"risk_at_login":       docstore.F64(sess, "risk_at_login"),
			"risk_score":          0.0,
			"location":            "Unknown",
			"action_count":        0,
			"download_count":      0,
		}
		if user != nil {
			row["user_name"] = docstore.StrOr(user, "name", "Unknown")
			row["user_email"] = docstore.StrOr(user, "email", "Unknown")
			row["risk_score"] = docstore.F64(user, "risk_score")
		}
		if behavior != nil {
			row["location"] = docstore.StrOr(behavior, "location", "Unknown")
			row["action_count"] = docstore.Int(behavior, "action_count")
			row["download_count"] = docstore.Int(behavior, "download_count")
		}
		out = append(out, row)
	}
	return out
}

// BlockedUsers lists users whose access level is blocked.
func (s *AdminService) BlockedUsers() []map[string]any {
	users := s.db.C(domain.ColUsers).Find(docstore.Query{"access_level": string(domain.AccessBlocked)}).All()
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{
			"id":                     docstore.Str(u, docstore.IDField),
			"email":                  docstore.Str(u, "email"),
			"name":                   docstore.Str(u, "name"),
			"risk_score":             docstore.F64(u, "risk_score"),
			"is_under_investigation": docstore.Bool(u, "is_under_investigation"),
		})
	}
	return out
}

// UserAction applies an administrative action to a user and records a
// before/after audit-trail document.
func (s *AdminService) UserAction(ctx context.Context, adminID, userID, action, reason, clientIP string) error {
	if !adminActions[action] {
		return domain.ErrValidation("unknown admin action: " + action)
	}

	users := s.db.C(domain.ColUsers)
	target := users.FindOne(docstore.Query{docstore.IDField: userID})
	if target == nil {
		return domain.ErrNotFound("user not found")
	}
	before := accessState(target)
	byID := docstore.Query{docstore.IDField: userID}

	switch action {
	case "lock_account":
		users.UpdateOne(byID, docstore.Set(map[string]any{
			"is_active":    false,
			"access_level": string(domain.AccessBlocked),
		}))
		s.db.C(domain.ColSessions).UpdateMany(
			docstore.Query{"user_id": userID},
			docstore.Set(map[string]any{"revoked": true, "revoke_reason": "account locked"}),
		)
	case "force_logout":
		s.db.C(domain.ColSessions).UpdateMany(
			docstore.Query{"user_id": userID},
			docstore.Set(map[string]any{"revoked": true, "revoke_reason": "forced logout"}),
		)
	case "investigate":
		users.UpdateOne(byID, docstore.Set(map[string]any{"is_under_investigation": true}))
	case "mark_safe":
		users.UpdateOne(byID, docstore.Set(map[string]any{
			"is_under_investigation": false,
			"risk_score":             0.0,
			"access_level":           string(domain.AccessFull),
			"is_active":              true,
		}))
	case "unblock":
		users.UpdateOne(byID, docstore.Set(map[string]any{
			"access_level": string(domain.AccessFull),
			"is_active":    true,
		}))
	case "resolve_incident":
		users.UpdateOne(byID, docstore.Set(map[string]any{
			"risk_score":             0.0,
			"is_under_investigation": false,
		}))
		s.db.C(domain.ColIncidents).UpdateMany(
			docstore.Query{"user_id": userID},
			docstore.Set(map[string]any{"resolved": true}),
		)
		s.db.C(domain.ColAlerts).UpdateMany(
			docstore.Query{"user_id": userID},
			docstore.Set(map[string]any{"status": "resolved", "acknowledged": true}),
		)
	}

	after := accessState(users.FindOne(byID))
	s.db.C(domain.ColAuditTrail).InsertOne(docstore.Document{
		"admin_id":       adminID,
		"target_user_id": userID,
		"action":         action,
		"reason":         reason,
		"before_state":   before,
		"after_state":    after,
		"timestamp":      time.Now().UTC(),
		"ip_address":     clientIP,
	})

	s.logger.Info("admin action applied",
		"admin_id", adminID, "user_id", userID, "action", action)
	return nil
}

// RiskHistory returns the user's most recent risk snapshots.
func (s *AdminService) RiskHistory(userID string, limit int) []map[string]any {
	if limit <= 0 {
		limit = 50
	}
	history := s.db.C(domain.ColRiskScoreHistory).
		Find(docstore.Query{"user_id": userID}).
		Sort("timestamp", docstore.Descending).
		Limit(limit).
		All()

	out := make([]map[string]any, 0, len(history))
	for _, h := range history {
		out = append(out, map[string]any{
			"old_score":    docstore.F64(h, "old_score"),
			"new_score":    docstore.F64(h, "new_score"),
			"delta":        docstore.F64(h, "delta"),
			"factors":      h["factors"],
			"timestamp":    h["timestamp"],
			"triggered_by": docstore.StrOr(h, "triggered_by", "unknown"),
		})
	}
	return out
}

// UserSessions lists all of a user's sessions, most recently active first.
func (s *AdminService) UserSessions(userID string) []map[string]any {
	sessions := s.db.C(domain.ColSessions).
		Find(docstore.Query{"user_id": userID}).
		Sort("last_activity", docstore.Descending).
		All()

	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{
			"session_id":          docstore.Str(sess, "session_id"),
			"ip_address":          docstore.Str(sess, "ip_address"),
			"user_agent":          truncate(docstore.Str(sess, "user_agent"), deviceFingerprintLen),
			"last_activity":       sess["last_activity"],
			"expires_at":          sess["expires_at"],
			"login_attempt_count": loginAttempts(sess),
			"start_time":          sess["start_time"],
			"mfa_verified":        docstore.Bool(sess, "mfa_verified"),
			"revoked":             docstore.Bool(sess, "revoked"),
			"risk_at_login":       docstore.F64(sess, "risk_at_login"),
		})
	}
	return out
}

// RiskBreakdown returns the latest persisted component breakdown for a user,
// with the score scaled back to [0, 100].
func (s *AdminService) RiskBreakdown(userID string) map[string]any {
	latest := s.db.C(domain.ColRiskScoreHistory).
		Find(docstore.Query{"user_id": userID}).
		Sort("timestamp", docstore.Descending).
		Limit(1).
		First()
	if latest == nil {
		return map[string]any{"factors": []any{}, "score": 0.0}
	}
	factors := latest["factors"]
	if factors == nil {
		factors = []any{}
	}
	return map[string]any{
		"factors":   factors,
		"score":     docstore.F64(latest, "new_score") * 100,
		"timestamp": latest["timestamp"],
	}
}

// ActivityAnalytics summarizes one user's activity: recent log entries, the
// module they enter most, and total dwell time per module. The last two are
// aggregation pipelines over the activity and module-session collections.
func (s *AdminService) ActivityAnalytics(userID string) map[string]any {
	logs := s.db.C(domain.ColUserActivityLogs).
		Find(docstore.Query{"user_id": userID}).
		Sort("timestamp", docstore.Descending).
		Limit(50).
		All()
	recent := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		entry := map[string]any{"id": docstore.Str(l, docstore.IDField)}
		for k, v := range l {
			if k != docstore.IDField {
				entry[k] = v
			}
		}
		recent = append(recent, entry)
	}

	mostUsed := s.db.C(domain.ColUserActivityLogs).Aggregate(docstore.Pipeline{
		{"$match": map[string]any{"user_id": userID, "action": "enter_module"}},
		{"$group": map[string]any{"_id": "$app_id", "count": map[string]any{"$sum": 1}}},
		{"$sort": map[string]any{"count": -1}},
		{"$limit": 1},
	})
	var mostUsedModule any
	if len(mostUsed) > 0 {
		mostUsedModule = mostUsed[0][docstore.IDField]
	}

	dwell := s.db.C(domain.ColModuleSessions).Aggregate(docstore.Pipeline{
		{"$match": map[string]any{"user_id": userID, "active": false}},
		{"$group": map[string]any{"_id": "$app_id", "total_duration": map[string]any{"$sum": "$duration_seconds"}}},
	})
	durations := make(map[string]any, len(dwell))
	for _, d := range dwell {
		durations[docstore.Str(d, docstore.IDField)] = d["total_duration"]
	}

	return map[string]any{
		"recent_logs":      recent,
		"most_used_module": mostUsedModule,
		"module_durations": durations,
	}
}

// AuditTrail lists the most recent admin actions.
func (s *AdminService) AuditTrail(limit int) []map[string]any {
	if limit <= 0 {
		limit = 200
	}
	trail := s.db.C(domain.ColAuditTrail).
		Find(nil).
		Sort("timestamp", docstore.Descending).
		Limit(limit).
		All()

	out := make([]map[string]any, 0, len(trail))
	for _, t := range trail {
		out = append(out, map[string]any{
			"id":             docstore.Str(t, docstore.IDField),
			"admin_id":       docstore.Str(t, "admin_id"),
			"target_user_id": docstore.Str(t, "target_user_id"),
			"action":         docstore.Str(t, "action"),
			"reason":         docstore.Str(t, "reason"),
			"timestamp":      t["timestamp"],
			"ip_address":     docstore.Str(t, "ip_address"),
		})
	}
	return out
}

// AppInput describes a managed application.
type AppInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Apps lists all managed applications.
func (s *AdminService) Apps() []map[string]any {
	apps := s.db.C(domain.ColApps).Find(nil).All()
	out := make([]map[string]any, 0, len(apps))
	for _, a := range apps {
		out = append(out, map[string]any{
			"id":          docstore.Str(a, docstore.IDField),
			"name":        docstore.Str(a, "name"),
			"description": docstore.Str(a, "description"),
			"url":         docstore.Str(a, "url"),
		})
	}
	return out
}

// CreateApp registers a managed application.
func (s *AdminService) CreateApp(input AppInput) (string, error) {
	if input.Name == "" {
		return "", domain.ErrValidation("app name is required")
	}
	id := s.db.C(domain.ColApps).InsertOne(docstore.Document{
		"name":        input.Name,
		"description": input.Description,
		"url":         input.URL,
		"created_at":  time.Now().UTC(),
	})
	return id, nil
}

// AppUsers lists the credentials issued for one app.
func (s *AdminService) AppUsers(appID string) []map[string]any {
	creds := s.db.C(domain.ColUserCredentials).Find(docstore.Query{"app_id": appID}).All()
	out := make([]map[string]any, 0, len(creds))
	for _, c := range creds {
		out = append(out, map[string]any{
			"id":       docstore.Str(c, docstore.IDField),
			"user_id":  docstore.Str(c, "user_id"),
			"username": docstore.Str(c, "username"),
		})
	}
	return out
}

// CredentialInput describes a per-app credential grant.
type CredentialInput struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateCredential grants a user access to an app and notifies them by email.
// Notification failures are logged, not returned.
func (s *AdminService) CreateCredential(ctx context.Context, appID string, input CredentialInput) (string, error) {
	user := s.db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: input.UserID})
	app := s.db.C(domain.ColApps).FindOne(docstore.Query{docstore.IDField: appID})
	if user == nil || app == nil {
		return "", domain.ErrNotFound("user or application not found")
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return "", domain.ErrValidation(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.ErrInternal("hash credential password", err)
	}
	id := s.db.C(domain.ColUserCredentials).InsertOne(docstore.Document{
		"user_id":       input.UserID,
		"app_id":        appID,
		"username":      input.Username,
		"password_hash": string(hash),
		"created_at":    time.Now().UTC(),
	})

	if s.mailer != nil {
		if err := s.mailer.SendAccessNotification(ctx,
			docstore.Str(user, "email"), docstore.Str(user, "name"),
			docstore.Str(app, "name"), input.Username); err != nil {
			s.logger.Error("access notification failed", "error", err, "user_id", input.UserID)
		}
	}
	return id, nil
}

// LoginWindowInput describes a permitted login window for a user on an app.
type LoginWindowInput struct {
	UserID       string `json:"user_id"`
	AppID        string `json:"app_id"`
	AllowedStart string `json:"allowed_start"`
	AllowedEnd   string `json:"allowed_end"`
}

// LoginWindows lists all configured login windows.
func (s *AdminService) LoginWindows() []map[string]any {
	windows := s.db.C(domain.ColLoginWindows).Find(nil).All()
	out := make([]map[string]any, 0, len(windows))
	for _, w := range windows {
		out = append(out, map[string]any{
			"id":            docstore.Str(w, docstore.IDField),
			"user_id":       docstore.Str(w, "user_id"),
			"app_id":        docstore.Str(w, "app_id"),
			"allowed_start": docstore.Str(w, "allowed_start"),
			"allowed_end":   docstore.Str(w, "allowed_end"),
		})
	}
	return out
}

// CreateLoginWindow configures a permitted login window.
func (s *AdminService) CreateLoginWindow(input LoginWindowInput) (string, error) {
	if input.UserID == "" || input.AppID == "" {
		return "", domain.ErrValidation("user_id and app_id are required")
	}
	id := s.db.C(domain.ColLoginWindows).InsertOne(docstore.Document{
		"user_id":       input.UserID,
		"app_id":        input.AppID,
		"allowed_start": input.AllowedStart,
		"allowed_end":   input.AllowedEnd,
		"created_at":    time.Now().UTC(),
	})
	return id, nil
}

// EmergencyRequests lists pending emergency access requests.
func (s *AdminService) EmergencyRequests() []map[string]any {
	reqs := s.db.C(domain.ColEmergencyRequests).Find(docstore.Query{"status": "pending"}).All()
	out := make([]map[string]any, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, map[string]any{
			"id":           docstore.Str(r, docstore.IDField),
			"user_id":      docstore.Str(r, "user_id"),
			"app_id":       docstore.Str(r, "app_id"),
			"requested_at": r["requested_at"],
			"reason":       docstore.Str(r, "reason"),
		})
	}
	return out
}

// CreateEmergencyRequest files an emergency access request on behalf of the
// authenticated user.
func (s *AdminService) CreateEmergencyRequest(userID, appID, reason string) (string, error) {
	if appID == "" {
		return "", domain.ErrValidation("app_id is required")
	}
	id := s.db.C(domain.ColEmergencyRequests).InsertOne(docstore.Document{
		"user_id":      userID,
		"app_id":       appID,
		"requested_at": time.Now().UTC(),
		"status":       "pending",
		"reason":       reason,
	})
	return id, nil
}

func accessState(u docstore.Document) map[string]any {
	if u == nil {
		return map[string]any{}
	}
	return map[string]any{
		"is_active":              docstore.BoolOr(u, "is_active", true),
		"access_level":           docstore.StrOr(u, "access_level", string(domain.AccessFull)),
		"is_under_investigation": docstore.Bool(u, "is_under_investigation"),
	}
}

func loginAttempts(session docstore.Document) int {
	if _, ok := session["login_attempt_count"]; !ok {
		return 1
	}
	return docstore.Int(session, "login_attempt_count")
}
