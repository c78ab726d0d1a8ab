package demo

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/risk"
)

var attackIPs = []string{
	"185.220.101.42",
	"91.219.236.136",
	"103.47.132.10",
	"198.51.100.77",
}

var attackDevices = []string{
	"curl/7.68.0 automated-script",
	"Python-urllib/3.8 data-scraper",
	"Mozilla/5.0 Kali-Linux-Bot",
}

var attackLocations = []string{"Tor Network", "Moscow, Russia", "Beijing, China"}

// offHours are the login hours the simulation picks from; all of them land in
// the deep off-hours boost window.
var offHours = []int{0, 1, 2, 3, 23}

// SimulateAttack fabricates a hostile session for the target user (random
// active user when empty) and runs a real evaluation over it, exercising
// every risk component at once. Returns the full evaluation outcome plus the
// fabricated attack facts for the demo UI.
func SimulateAttack(ctx context.Context, db *docstore.Store, evaluator *risk.Evaluator, targetUserID string) (map[string]any, error) {
	var target docstore.Document
	if targetUserID == "" {
		candidates := db.C(domain.ColUsers).Find(docstore.Query{"role": domain.RoleUser}).All()
		if len(candidates) == 0 {
			return nil, domain.ErrNotFound("no users available for simulation")
		}
		target = candidates[rand.Intn(len(candidates))]
		targetUserID = docstore.Str(target, docstore.IDField)
	} else {
		target = db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: targetUserID})
		if target == nil {
			return nil, domain.ErrNotFound("user not found")
		}
	}

	sessionID := uuid.NewString()
	attackIP := attackIPs[rand.Intn(len(attackIPs))]
	attackDevice := attackDevices[rand.Intn(len(attackDevices))]
	attackHour := offHours[rand.Intn(len(offHours))]

	now := time.Now().UTC()
	loginTime := time.Date(now.Year(), now.Month(), now.Day(), attackHour, rand.Intn(60), 0, 0, time.UTC)

	db.C(domain.ColSessions).InsertOne(docstore.Document{
		"session_id":          sessionID,
		"user_id":             targetUserID,
		"ip_address":          attackIP,
		"device_fingerprint":  attackDevice,
		"user_agent":          attackDevice,
		"start_time":          loginTime,
		"last_activity":       now,
		"expires_at":          now.Add(24 * time.Hour),
		"mfa_verified":        false,
		"risk_at_login":       0.0,
		"revoked":             false,
		"login_attempt_count": 3 + rand.Intn(4),
	})

	downloads := 50 + rand.Intn(151)
	actions := 150 + rand.Intn(151)
	db.C(domain.ColSessionBehavior).InsertOne(docstore.Document{
		"session_id":             sessionID,
		"user_id":                targetUserID,
		"login_timestamp":        loginTime,
		"ip_address":             attackIP,
		"device_info":            attackDevice,
		"location":               attackLocations[rand.Intn(len(attackLocations))],
		"accessed_services":      []any{"Admin Console", "Finance Dashboard", "HR System", "File Storage"},
		"action_count":           actions,
		"download_count":         downloads,
		"duration_minutes":       float64(5 + rand.Intn(11)),
		"service_switches":       10 + rand.Intn(16),
		"failed_access_attempts": 5 + rand.Intn(11),
	})

	for i := 0; i < 20; i++ {
		db.C(domain.ColBehaviorLogs).InsertOne(docstore.Document{
			"user_id":            targetUserID,
			"session_id":         sessionID,
			"event_type":         pick("data_export", "config_change", "access_resource"),
			"resource":           pick("Admin Console", "Finance Dashboard", "database_backup"),
			"action":             pick("export", "delete", "write"),
			"ip_address":         attackIP,
			"device_fingerprint": attackDevice,
			"timestamp":          now,
		})
	}

	result := evaluator.Evaluate(ctx, targetUserID, sessionID)

	incident := evaluator.CreateIncident(ctx, targetUserID, domain.SeverityCritical, domain.IncidentSimulatedAttack,
		fmt.Sprintf("SIMULATED ATTACK: Session from %s at %02d:00. %d downloads, unauthorized service access.",
			attackIP, attackHour, downloads),
		result.Breakdown)
	evaluator.CreateAlert(ctx, targetUserID, domain.SeverityCritical,
		fmt.Sprintf("ATTACK SIM: %s blocked - Risk %.1f/100", docstore.Str(target, "name"), result.Score),
		&result)

	return map[string]any{
		"status": "attack_simulated",
		"target_user": map[string]any{
			"id":    targetUserID,
			"name":  docstore.Str(target, "name"),
			"email": docstore.Str(target, "email"),
		},
		"attack_details": map[string]any{
			"ip_address":            attackIP,
			"device":                attackDevice,
			"login_hour":            fmt.Sprintf("%02d:00", attackHour),
			"downloads":             downloads,
			"actions":               actions,
			"unauthorized_services": []string{"Admin Console", "Finance Dashboard"},
		},
		"risk_result":  result,
		"session_id":   sessionID,
		"incident_id":  docstore.Str(incident, docstore.IDField),
		"action_taken": "Session blocked + Alert generated",
	}, nil
}
