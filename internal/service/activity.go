package service

import (
	"context"
	"time"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/risk"
)

// ActivityService records user actions, maintains per-session behavior
// counters and module dwell tracking, and serves the user-facing read
// surface. Every recorded action re-runs the risk evaluation synchronously.
type ActivityService struct {
	db        *docstore.Store
	evaluator *risk.Evaluator
}

// NewActivityService creates a new ActivityService.
func NewActivityService(db *docstore.Store, evaluator *risk.Evaluator) *ActivityService {
	return &ActivityService{db: db, evaluator: evaluator}
}

// ActionInput describes one user action inside an app.
type ActionInput struct {
	AppID    string         `json:"app_id"`
	Action   string         `json:"action"`
	Details  string         `json:"details"`
	Metadata map[string]any `json:"metadata"`
}

// ActionResult is returned after an action is recorded and evaluated.
type ActionResult struct {
	Status    string  `json:"status"`
	Action    string  `json:"action"`
	RiskScore float64 `json:"risk_score"`
	Decision  string  `json:"decision"`
}

// RecordAction logs the action, updates behavior counters and module dwell
// state, then evaluates the session. The evaluation's side effects (blocking,
// restriction) take hold even though the result is returned as success; a
// blocked session fails on its next authenticated request.
func (s *ActivityService) RecordAction(ctx context.Context, userID, sessionID string, input ActionInput) (*ActionResult, error) {
	if input.AppID == "" || input.Action == "" {
		return nil, domain.ErrValidation("app_id and action are required")
	}
	now := time.Now().UTC()

	meta := input.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	s.db.C(domain.ColUserActivityLogs).InsertOne(docstore.Document{
		"user_id":    userID,
		"session_id": sessionID,
		"app_id":     input.AppID,
		"action":     input.Action,
		"details":    input.Details,
		"metadata":   meta,
		"timestamp":  now,
	})

	s.trackModuleDwell(userID, sessionID, input.AppID, input.Action, now)
	s.updateBehavior(sessionID, input.AppID, input.Action, now)

	result := s.evaluator.Evaluate(ctx, userID, sessionID)
	return &ActionResult{
		Status:    "success",
		Action:    input.Action,
		RiskScore: result.Score,
		Decision:  string(result.Decision),
	}, nil
}

// SimulateAction records an action on behalf of a user without evaluating.
// Used by admins to replay scenarios; falls back to a synthetic session id
// when the user has no live session.
func (s *ActivityService) SimulateAction(ctx context.Context, userID string, input ActionInput) (*ActionResult, error) {
	if input.AppID == "" || input.Action == "" {
		return nil, domain.ErrValidation("app_id and action are required")
	}
	sessionID := "sim_" + userID
	if active := s.db.C(domain.ColSessions).FindOne(docstore.Query{"user_id": userID, "revoked": false}); active != nil {
		sessionID = docstore.Str(active, "session_id")
	}

	now := time.Now().UTC()
	meta := input.Metadata
	if meta == nil {
		meta = map[string]any{"source": "admin_simulation"}
	}
	s.db.C(domain.ColUserActivityLogs).InsertOne(docstore.Document{
		"user_id":    userID,
		"session_id": sessionID,
		"app_id":     input.AppID,
		"action":     input.Action,
		"details":    input.Details,
		"metadata":   meta,
		"timestamp":  now,
	})
	s.trackModuleDwell(userID, sessionID, input.AppID, input.Action, now)

	return &ActionResult{Status: "simulated", Action: input.Action}, nil
}

// trackModuleDwell opens a module session on enter and closes it on exit,
// recording the dwell duration both on the module session and as its own
// activity log entry.
func (s *ActivityService) trackModuleDwell(userID, sessionID, appID, action string, now time.Time) {
	modules := s.db.C(domain.ColModuleSessions)
	openQuery := docstore.Query{
		"user_id":    userID,
		"session_id": sessionID,
		"app_id":     appID,
		"active":     true,
	}

	switch action {
	case "enter_module":
		if existing := modules.FindOne(openQuery); existing != nil {
			modules.UpdateOne(openQuery, docstore.Set(map[string]any{"enter_time": now}))
			return
		}
		modules.InsertOne(docstore.Document{
			"user_id":    userID,
			"session_id": sessionID,
			"app_id":     appID,
			"enter_time": now,
			"active":     true,
		})
	case "exit_module":
		open := modules.FindOne(openQuery)
		if open == nil {
			return
		}
		enter, ok := docstore.Time(open, "enter_time")
		if !ok {
			enter = now
		}
		duration := now.Sub(enter).Seconds()
		modules.UpdateOne(
			docstore.Query{docstore.IDField: docstore.Str(open, docstore.IDField)},
			docstore.Set(map[string]any{
				"exit_time":        now,
				"duration_seconds": duration,
				"active":           false,
			}),
		)
		s.db.C(domain.ColUserActivityLogs).InsertOne(docstore.Document{
			"user_id":    userID,
			"session_id": sessionID,
			"app_id":     appID,
			"action":     "module_dwell",
			"duration":   duration,
			"timestamp":  now,
		})
	}
}

// updateBehavior keeps the session_behavior counters the calculators read:
// action count, downloads, services accessed with switch count, and elapsed
// session duration.
func (s *ActivityService) updateBehavior(sessionID, appID, action string, now time.Time) {
	behaviors := s.db.C(domain.ColSessionBehavior)
	behavior := behaviors.FindOne(docstore.Query{"session_id": sessionID})
	if behavior == nil {
		return
	}
	query := docstore.Query{"session_id": sessionID}

	update := docstore.Update{"$inc": map[string]any{"action_count": 1}}
	if action == "download" {
		update["$inc"].(map[string]any)["download_count"] = 1
	}

	set := map[string]any{}
	if start, ok := docstore.Time(behavior, "login_timestamp"); ok {
		set["duration_minutes"] = now.Sub(start).Minutes()
	}

	accessed := docstore.StrSlice(behavior, "accessed_services")
	seen := false
	for _, svc := range accessed {
		if svc == appID {
			seen = true
			break
		}
	}
	if !seen {
		update["$push"] = map[string]any{"accessed_services": appID}
		if len(accessed) > 0 {
			update["$inc"].(map[string]any)["service_switches"] = 1
		}
	}
	if len(set) > 0 {
		update["$set"] = set
	}

	behaviors.UpdateOne(query, update)
}

// Profile returns the authenticated user's own view.
func (s *ActivityService) Profile(user, session docstore.Document) map[string]any {
	return map[string]any{
		"id":           docstore.Str(user, docstore.IDField),
		"email":        docstore.Str(user, "email"),
		"name":         docstore.Str(user, "name"),
		"role":         docstore.Str(user, "role"),
		"created_at":   user["created_at"],
		"risk_score":   docstore.F64(user, "risk_score"),
		"access_level": docstore.StrOr(user, "access_level", string(domain.AccessFull)),
		"mfa_verified": docstore.Bool(session, "mfa_verified"),
	}
}

// RiskScore runs a fresh evaluation and returns it in the user-facing shape,
// with component scores normalized to [0, 1].
func (s *ActivityService) RiskScore(ctx context.Context, userID, sessionID string) map[string]any {
	result := s.evaluator.Evaluate(ctx, userID, sessionID)

	componentScore := func(factor string) float64 {
		for _, c := range result.Breakdown {
			if c.Factor == factor {
				return c.RawRisk / 100.0
			}
		}
		return 0
	}

	return map[string]any{
		"overall_risk":           result.Score / 100.0,
		"behavioral_anomaly":     componentScore("behavioral_anomaly"),
		"access_pattern_anomaly": componentScore("unauthorized_service"),
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
		"decision":               string(result.Decision),
		"breakdown":              result.Breakdown,
	}
}

// RecentActivity returns the user's most recent behavior log entries.
func (s *ActivityService) RecentActivity(userID string, limit int) []map[string]any {
	if limit <= 0 {
		limit = 50
	}
	logs := s.db.C(domain.ColBehaviorLogs).
		Find(docstore.Query{"user_id": userID}).
		Sort("timestamp", docstore.Descending).
		Limit(limit).
		All()

	out := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		out = append(out, map[string]any{
			"id":         docstore.Str(l, docstore.IDField),
			"event_type": docstore.Str(l, "event_type"),
			"resource":   docstore.Str(l, "resource"),
			"action":     docstore.Str(l, "action"),
			"timestamp":  l["timestamp"],
		})
	}
	return out
}
