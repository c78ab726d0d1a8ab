package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/guard"
	"github.com/zerotrust/platform/internal/risk"
)

// deviceFingerprintLen caps the user-agent prefix stored as a fingerprint.
const deviceFingerprintLen = 60

// AuthService handles registration and the two login flows (portal login and
// per-app login). Every successful login runs a risk evaluation on the fresh
// session before the token is returned.
type AuthService struct {
	db        *docstore.Store
	jwtMgr    *auth.JWTManager
	evaluator *risk.Evaluator
}

// NewAuthService creates a new AuthService.
func NewAuthService(db *docstore.Store, jwtMgr *auth.JWTManager, evaluator *risk.Evaluator) *AuthService {
	return &AuthService{db: db, jwtMgr: jwtMgr, evaluator: evaluator}
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginInput holds the portal login request fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AppLoginInput holds the per-app login request fields.
type AppLoginInput struct {
	AppID    string `json:"app_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is returned on successful registration or login.
type AuthResult struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   int     `json:"expires_in"`
	Role        string  `json:"role"`
	SessionID   string  `json:"session_id"`
	UserID      string  `json:"user_id"`
	UserName    string  `json:"user_name"`
	RiskScore   float64 `json:"risk_score"`
	Decision    string  `json:"decision,omitempty"`
}

// Register creates a new user account plus a bootstrap session. Registration
// sessions carry a fixed local fingerprint and skip risk evaluation.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if input.Role == "" {
		input.Role = domain.RoleUser
	}
	if input.Role != domain.RoleUser && input.Role != domain.RoleAdmin {
		return nil, domain.ErrValidation("role must be user or admin")
	}

	users := s.db.C(domain.ColUsers)
	if users.FindOne(docstore.Query{"email": input.Email}) != nil {
		return nil, domain.ErrConflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	now := time.Now().UTC()
	userID := users.InsertOne(docstore.Document{
		"email":                  input.Email,
		"password":               string(hash),
		"name":                   input.Name,
		"role":                   input.Role,
		"mfa_enabled":            false,
		"risk_score":             0.0,
		"access_level":           string(domain.AccessFull),
		"is_active":              true,
		"is_under_investigation": false,
		"failed_login_count":     0,
		"created_at":             now,
	})

	sessionID := uuid.NewString()
	s.insertSession(sessionID, userID, "registration", "127.0.0.1", "registration", 0.0, true, 1)

	token, err := s.jwtMgr.GenerateToken(userID, input.Email, input.Role, sessionID)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AuthResult{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.Expiry().Seconds()),
		Role:        input.Role,
		SessionID:   sessionID,
		UserID:      userID,
		UserName:    input.Name,
	}, nil
}

// Login authenticates a user, creates the session and its behavior record,
// then runs a risk evaluation over the new session. A BLOCK decision rejects
// the login even though credentials were valid.
func (s *AuthService) Login(ctx context.Context, input LoginInput, clientIP, userAgent string) (*AuthResult, error) {
	if err := guard.CheckLocked(s.db, input.Email); err != nil {
		return nil, err
	}

	users := s.db.C(domain.ColUsers)
	user := users.FindOne(docstore.Query{"email": input.Email})
	if user == nil {
		guard.RecordAttempt(s.db, input.Email, clientIP, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	userID := docstore.Str(user, docstore.IDField)

	if err := bcrypt.CompareHashAndPassword([]byte(docstore.Str(user, "password")), []byte(input.Password)); err != nil {
		users.UpdateOne(docstore.Query{docstore.IDField: userID},
			docstore.Inc(map[string]any{"failed_login_count": 1}))
		guard.RecordAttempt(s.db, input.Email, clientIP, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if !docstore.BoolOr(user, "is_active", true) {
		return nil, domain.ErrForbidden("account disabled")
	}

	guard.RecordAttempt(s.db, input.Email, clientIP, true)

	// Failed attempts before this success count toward the login_attempts
	// risk factor, then the counter resets.
	attempts := docstore.Int(user, "failed_login_count") + 1
	users.UpdateOne(docstore.Query{docstore.IDField: userID},
		docstore.Set(map[string]any{"failed_login_count": 0}))

	sessionID := uuid.NewString()
	fingerprint := truncate(userAgent, deviceFingerprintLen)
	s.insertSession(sessionID, userID, fingerprint, clientIP, userAgent, docstore.F64(user, "risk_score"), true, attempts)
	s.insertBehavior(sessionID, userID, clientIP, fingerprint, "Detected", nil)

	result := s.evaluator.Evaluate(ctx, userID, sessionID)
	s.db.C(domain.ColSessions).UpdateOne(
		docstore.Query{"session_id": sessionID},
		docstore.Set(map[string]any{"risk_at_login": result.Score / 100.0}),
	)
	if result.Decision == domain.DecisionBlock {
		return nil, domain.ErrForbidden("login blocked by risk policy")
	}

	token, err := s.jwtMgr.GenerateToken(userID, input.Email, docstore.Str(user, "role"), sessionID)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AuthResult{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.Expiry().Seconds()),
		Role:        docstore.Str(user, "role"),
		SessionID:   sessionID,
		UserID:      userID,
		UserName:    docstore.Str(user, "name"),
		RiskScore:   result.Score / 100.0,
		Decision:    string(result.Decision),
	}, nil
}

// AppLogin authenticates against per-app credentials instead of the user's
// portal password. The app is recorded as the session's first accessed
// service so unauthorized-service scoring starts from real data.
func (s *AuthService) AppLogin(ctx context.Context, input AppLoginInput, clientIP, userAgent string) (*AuthResult, error) {
	cred := s.db.C(domain.ColUserCredentials).FindOne(docstore.Query{
		"app_id":   input.AppID,
		"username": input.Username,
	})
	if cred == nil {
		return nil, domain.ErrUnauthorized("invalid app credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(docstore.Str(cred, "password_hash")), []byte(input.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid app credentials")
	}

	userID := docstore.Str(cred, "user_id")
	user := s.db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: userID})
	if user == nil || !docstore.BoolOr(user, "is_active", true) {
		return nil, domain.ErrForbidden("user account disabled")
	}

	sessionID := uuid.NewString()
	fingerprint := truncate(userAgent, deviceFingerprintLen)
	s.insertSession(sessionID, userID, fingerprint, clientIP, userAgent, docstore.F64(user, "risk_score"), false, 1)

	appName := input.AppID
	if app := s.db.C(domain.ColApps).FindOne(docstore.Query{docstore.IDField: input.AppID}); app != nil {
		appName = docstore.StrOr(app, "name", input.AppID)
	}
	s.insertBehavior(sessionID, userID, clientIP, fingerprint, "App Login", []any{appName})

	result := s.evaluator.Evaluate(ctx, userID, sessionID)
	if result.Decision == domain.DecisionBlock {
		return nil, domain.ErrForbidden("login blocked by risk policy")
	}

	token, err := s.jwtMgr.GenerateToken(userID, docstore.Str(user, "email"), docstore.Str(user, "role"), sessionID)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AuthResult{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.Expiry().Seconds()),
		Role:        docstore.Str(user, "role"),
		SessionID:   sessionID,
		UserID:      userID,
		UserName:    docstore.Str(user, "name"),
		RiskScore:   result.Score / 100.0,
		Decision:    string(result.Decision),
	}, nil
}

// Logout revokes the current session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	matched := s.db.C(domain.ColSessions).UpdateOne(
		docstore.Query{"session_id": sessionID},
		docstore.Set(map[string]any{"revoked": true, "revoke_reason": "logout"}),
	)
	if !matched {
		return domain.ErrNotFound("session not found")
	}
	return nil
}

func (s *AuthService) insertSession(sessionID, userID, fingerprint, ip, userAgent string, riskAtLogin float64, mfaVerified bool, attempts int) {
	now := time.Now().UTC()
	s.db.C(domain.ColSessions).InsertOne(docstore.Document{
		"session_id":          sessionID,
		"user_id":             userID,
		"device_fingerprint":  fingerprint,
		"ip_address":          ip,
		"user_agent":          userAgent,
		"start_time":          now,
		"last_activity":       now,
		"expires_at":          now.Add(s.jwtMgr.Expiry()),
		"mfa_verified":        mfaVerified,
		"risk_at_login":       riskAtLogin,
		"revoked":             false,
		"login_attempt_count": attempts,
	})
}

func (s *AuthService) insertBehavior(sessionID, userID, ip, device, location string, accessed []any) {
	if accessed == nil {
		accessed = []any{}
	}
	s.db.C(domain.ColSessionBehavior).InsertOne(docstore.Document{
		"session_id":             sessionID,
		"user_id":                userID,
		"login_timestamp":        time.Now().UTC(),
		"ip_address":             ip,
		"device_info":            device,
		"location":               location,
		"accessed_services":      accessed,
		"action_count":           0,
		"download_count":         0,
		"duration_minutes":       0.0,
		"service_switches":       0,
		"failed_access_attempts": 0,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
