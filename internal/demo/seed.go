package demo

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

const (
	normalIPPrefix = "192.168.1."
	normalDevice   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"
)

// Seeder populates the store with demo users, apps, credentials, and seven
// days of historical behavior so risk baselines exist from the first login.
type Seeder struct {
	db     *docstore.Store
	logger *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(db *docstore.Store, logger *slog.Logger) *Seeder {
	return &Seeder{db: db, logger: logger}
}

// Seed loads the demo dataset. Idempotent: a second call is a no-op.
func (s *Seeder) Seed() error {
	if s.db.C(domain.ColUsers).FindOne(docstore.Query{"email": "admin@zerotrust.io"}) != nil {
		s.logger.Info("demo data already present")
		return nil
	}
	s.logger.Info("seeding demo data")

	now := time.Now().UTC()
	s.seedApps(now)
	if err := s.seedUsers(now); err != nil {
		return err
	}
	if err := s.seedCredentials(now); err != nil {
		return err
	}
	s.seedLoginWindows(now)
	s.seedHistory(now)
	s.seedIncidents(now)
	s.seedActivity(now)

	s.logger.Info("demo data seeded")
	return nil
}

func (s *Seeder) seedApps(now time.Time) {
	apps := []struct{ id, name, desc, url string }{
		{"app_crm", "CRM Portal", "Customer relationship management", "https://crm.internal"},
		{"app_hr", "HR System", "Human resources", "https://hr.internal"},
		{"app_finance", "Finance Dashboard", "Financial reporting", "https://finance.internal"},
		{"app_email", "Email Server", "Corporate email", "https://mail.internal"},
		{"app_files", "File Storage", "Document management", "https://files.internal"},
		{"app_admin", "Admin Console", "System administration (restricted)", "https://admin.internal"},
		{"app_analytics", "Analytics Platform", "Business intelligence", "https://analytics.internal"},
	}
	for _, a := range apps {
		s.db.C(domain.ColApps).InsertOne(docstore.Document{
			docstore.IDField: a.id,
			"name":           a.name,
			"description":    a.desc,
			"url":            a.url,
			"created_at":     now,
		})
	}
}

type demoUser struct {
	id, email, password, name, role string
	riskScore                       float64
	accessLevel                     domain.AccessLevel
	underInvestigation              bool
	createdDaysAgo                  int
}

var demoUsers = []demoUser{
	{"user_admin", "admin@zerotrust.io", "admin123", "Admin User", domain.RoleAdmin, 0.05, domain.AccessFull, false, 30},
	{"user_alice", "alice@zerotrust.io", "user123", "Alice Johnson", domain.RoleUser, 0.12, domain.AccessFull, false, 25},
	{"user_bob", "bob@zerotrust.io", "user123", "Bob Smith", domain.RoleUser, 0.35, domain.AccessRestricted, false, 20},
	{"user_carol", "carol@zerotrust.io", "user123", "Carol White", domain.RoleUser, 0.72, domain.AccessBlocked, true, 15},
	{"user_dave", "dave@zerotrust.io", "user123", "Dave Martinez", domain.RoleUser, 0.08, domain.AccessFull, false, 10},
}

func (s *Seeder) seedUsers(now time.Time) error {
	for _, u := range demoUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash demo password: %w", err)
		}
		s.db.C(domain.ColUsers).InsertOne(docstore.Document{
			docstore.IDField:         u.id,
			"email":                  u.email,
			"password":               string(hash),
			"name":                   u.name,
			"role":                   u.role,
			"mfa_enabled":            false,
			"risk_score":             u.riskScore,
			"access_level":           string(u.accessLevel),
			"is_active":              true,
			"is_under_investigation": u.underInvestigation,
			"failed_login_count":     0,
			"created_at":             now.AddDate(0, 0, -u.createdDaysAgo),
		})
	}
	return nil
}

var appAssignments = map[string][]string{
	"user_alice": {"app_crm", "app_email", "app_files"},
	"user_bob":   {"app_crm", "app_hr", "app_email"},
	"user_carol": {"app_crm", "app_email"},
	"user_dave":  {"app_crm", "app_email", "app_files", "app_analytics"},
}

func (s *Seeder) seedCredentials(now time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("cred123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo credential: %w", err)
	}
	for uid, appIDs := range appAssignments {
		for _, aid := range appIDs {
			s.db.C(domain.ColUserCredentials).InsertOne(docstore.Document{
				"user_id":       uid,
				"app_id":        aid,
				"username":      uid[len("user_"):],
				"password_hash": string(hash),
				"created_at":    now,
			})
		}
	}
	return nil
}

func (s *Seeder) seedLoginWindows(now time.Time) {
	for _, u := range demoUsers {
		if u.role == domain.RoleAdmin {
			continue
		}
		s.db.C(domain.ColLoginWindows).InsertOne(docstore.Document{
			"user_id":       u.id,
			"app_id":        "app_crm",
			"allowed_start": "08:00",
			"allowed_end":   "20:00",
			"created_at":    now,
		})
	}
}

// seedHistory writes seven days of closed office-hours sessions per user so
// ProfileBuilder has a baseline and the mismatch calculators have known
// devices and addresses.
func (s *Seeder) seedHistory(now time.Time) {
	userIDs := []string{"user_alice", "user_bob", "user_carol", "user_dave"}
	services := []string{"CRM Portal", "Email Server", "File Storage"}

	for i, uid := range userIDs {
		ip := fmt.Sprintf("%s%d", normalIPPrefix, 100+i)
		for day := 7; day >= 1; day-- {
			sid := fmt.Sprintf("hist_%s_%d", uid, day)
			base := now.AddDate(0, 0, -day)
			start := time.Date(base.Year(), base.Month(), base.Day(), 8+rand.Intn(11), rand.Intn(60), 0, 0, time.UTC)
			dur := 15 + rand.Intn(106)
			actions := 5 + rand.Intn(26)
			downloads := rand.Intn(9)
			accessed := sampleServices(services, 1+rand.Intn(3))

			s.db.C(domain.ColSessions).InsertOne(docstore.Document{
				"session_id":         sid,
				"user_id":            uid,
				"ip_address":         ip,
				"device_fingerprint": normalDevice,
				"user_agent":         normalDevice,
				"start_time":         start,
				"last_activity":      start.Add(time.Duration(dur) * time.Minute),
				"expires_at":         start.Add(24 * time.Hour),
				"mfa_verified":       false,
				"risk_at_login":      0.02 + rand.Float64()*0.13,
				"revoked":            true,
			})
			s.db.C(domain.ColSessionBehavior).InsertOne(docstore.Document{
				"session_id":             sid,
				"user_id":                uid,
				"login_timestamp":        start,
				"ip_address":             ip,
				"device_info":            normalDevice,
				"location":               "Office - New York",
				"accessed_services":      toAnySlice(accessed),
				"action_count":           actions,
				"download_count":         downloads,
				"duration_minutes":       float64(dur),
				"service_switches":       len(accessed) - 1,
				"failed_access_attempts": 0,
			})
			for j := 0; j < actions; j++ {
				s.db.C(domain.ColBehaviorLogs).InsertOne(docstore.Document{
					"user_id":            uid,
					"session_id":         sid,
					"event_type":         pick("login", "access_resource", "access_resource", "data_export"),
					"resource":           accessed[rand.Intn(len(accessed))],
					"action":             pick("read", "read", "write"),
					"ip_address":         ip,
					"device_fingerprint": normalDevice,
					"timestamp":          start.Add(time.Duration(rand.Intn(dur+1)) * time.Minute),
				})
			}
			score := 0.02 + rand.Float64()*0.16
			s.db.C(domain.ColRiskScoreHistory).InsertOne(docstore.Document{
				"user_id":    uid,
				"session_id": sid,
				"old_score":  maxf(0, score-0.03),
				"new_score":  score,
				"delta":      0.03,
				"factors": []any{map[string]any{
					"factor":        "time_deviation",
					"raw_risk":      rand.Float64() * 10,
					"weight":        0.15,
					"weighted_risk": rand.Float64() * 2,
					"explanation":   "Normal hours",
					"status":        "normal",
				}},
				"timestamp":    start,
				"triggered_by": "session_evaluation",
			})
		}
	}
}

func (s *Seeder) seedIncidents(now time.Time) {
	descriptions := []string{
		"Unusual login pattern from unknown location",
		"Bulk data download exceeding limits",
		"Access from unregistered device",
	}
	types := []string{
		domain.IncidentBehavioralAnomaly,
		domain.IncidentGeographicAnomaly,
		domain.IncidentDownloadSpike,
	}
	for i := 0; i < 3; i++ {
		s.db.C(domain.ColIncidents).InsertOne(docstore.Document{
			"user_id":        "user_carol",
			"risk_level":     pick(domain.SeverityHigh, domain.SeverityCritical),
			"incident_type":  types[i],
			"description":    descriptions[i],
			"ai_explanation": "Behavioral deviation from baseline detected. Multiple risk factors contributed.",
			"evidence":       []any{},
			"timestamp":      now.AddDate(0, 0, -(1 + rand.Intn(5))),
			"action_taken":   "flagged",
			"resolved":       false,
		})
	}
	s.db.C(domain.ColAlerts).InsertOne(docstore.Document{
		"user_id":      "user_carol",
		"severity":     domain.SeverityCritical,
		"status":       "open",
		"description":  "Multiple high-risk sessions in 24 hours",
		"timestamp":    now.Add(-6 * time.Hour),
		"acknowledged": false,
	})
	s.db.C(domain.ColAlerts).InsertOne(docstore.Document{
		"user_id":      "user_bob",
		"severity":     domain.SeverityHigh,
		"status":       "open",
		"description":  "Login from new IP address detected",
		"timestamp":    now.Add(-12 * time.Hour),
		"acknowledged": false,
	})
}

// seedActivity gives each user recent module activity: one closed HR session
// with a recorded dwell and one still-open Finance session, plus a short risk
// trend for the dashboard graph.
func (s *Seeder) seedActivity(now time.Time) {
	users := s.db.C(domain.ColUsers).Find(nil).All()
	for _, u := range users {
		uid := docstore.Str(u, docstore.IDField)
		if s.db.C(domain.ColUserActivityLogs).CountDocuments(docstore.Query{"user_id": uid}) > 0 {
			continue
		}

		for day := 5; day >= 1; day-- {
			ts := now.AddDate(0, 0, -day)
			score := 0.05 + rand.Float64()*0.35
			s.db.C(domain.ColRiskScoreHistory).InsertOne(docstore.Document{
				"user_id":      uid,
				"old_score":    maxf(0, score-0.05),
				"new_score":    score,
				"delta":        0.05,
				"factors":      []any{},
				"timestamp":    ts,
				"triggered_by": "daily_audit",
			})
		}

		hrEnter := now.Add(-2*time.Hour - 30*time.Minute)
		hrExit := now.Add(-2*time.Hour - 10*time.Minute)
		hrDuration := hrExit.Sub(hrEnter).Seconds()
		s.db.C(domain.ColUserActivityLogs).InsertMany([]docstore.Document{
			{"user_id": uid, "app_id": "app_hr", "action": "enter_module", "details": "Module Entry", "timestamp": hrEnter},
			{"user_id": uid, "app_id": "app_hr", "action": "View Dashboard", "details": "Viewing Employee Directory", "timestamp": hrEnter.Add(5 * time.Minute)},
			{"user_id": uid, "app_id": "app_hr", "action": "Download HR File", "details": "FILE: payroll_q1_fixed.pdf", "is_sensitive": true, "timestamp": hrEnter.Add(12 * time.Minute)},
			{"user_id": uid, "app_id": "app_hr", "action": "exit_module", "details": "Module Exit", "timestamp": hrExit},
			{"user_id": uid, "app_id": "app_hr", "action": "module_dwell", "duration": hrDuration, "timestamp": hrExit},
		})
		s.db.C(domain.ColModuleSessions).InsertOne(docstore.Document{
			"user_id":          uid,
			"app_id":           "app_hr",
			"enter_time":       hrEnter,
			"exit_time":        hrExit,
			"duration_seconds": hrDuration,
			"active":           false,
		})

		finEnter := now.Add(-45 * time.Minute)
		s.db.C(domain.ColUserActivityLogs).InsertMany([]docstore.Document{
			{"user_id": uid, "app_id": "app_finance", "action": "enter_module", "details": "Module Entry", "timestamp": finEnter},
			{"user_id": uid, "app_id": "app_finance", "action": "View Ledger", "details": "Checking Q4 Projections", "timestamp": finEnter.Add(15 * time.Minute)},
			{"user_id": uid, "app_id": "app_finance", "action": "Simulated Export", "details": "FILE: tax_returns_2025.xlsx", "is_sensitive": true, "timestamp": finEnter.Add(30 * time.Minute)},
		})
		s.db.C(domain.ColModuleSessions).InsertOne(docstore.Document{
			"user_id":    uid,
			"app_id":     "app_finance",
			"enter_time": finEnter,
			"active":     true,
		})
	}
}

func sampleServices(pool []string, k int) []string {
	idx := rand.Perm(len(pool))
	if k > len(pool) {
		k = len(pool)
	}
	out := make([]string, 0, k)
	for _, i := range idx[:k] {
		out = append(out, pool[i])
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func pick[T any](options ...T) T {
	return options[rand.Intn(len(options))]
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
