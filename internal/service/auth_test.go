package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/guard"
	"github.com/zerotrust/platform/internal/risk"
)

const testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB() *docstore.Store {
	db := docstore.New()
	for _, name := range domain.AllCollections {
		db.CreateCollection(name)
	}
	return db
}

func newAuthService(db *docstore.Store) *AuthService {
	jwtMgr := auth.NewJWTManager("service-test-secret-0123456789abcdef", time.Hour)
	evaluator := risk.NewEvaluator(db, nil, nil, nil, testLogger())
	return NewAuthService(db, jwtMgr, evaluator)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func register(t *testing.T, svc *AuthService, email string) *AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: "correct-horse-battery",
		Name:     "Test User",
	})
	require.NoError(t, err)
	return res
}

func TestRegisterCreatesUserAndSession(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)

	res := register(t, svc, "alice@x.io")
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, domain.RoleUser, res.Role)
	assert.NotEmpty(t, res.SessionID)

	user := db.C(domain.ColUsers).FindOne(docstore.Query{"email": "alice@x.io"})
	require.NotNil(t, user)
	assert.Equal(t, string(domain.AccessFull), docstore.Str(user, "access_level"))
	assert.True(t, docstore.Bool(user, "is_active"))
	// Stored password is a bcrypt hash, never the plaintext.
	assert.NotEqual(t, "correct-horse-battery", docstore.Str(user, "password"))

	session := db.C(domain.ColSessions).FindOne(docstore.Query{"session_id": res.SessionID})
	require.NotNil(t, session)
	assert.Equal(t, "registration", docstore.Str(session, "device_fingerprint"))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newAuthService(newTestDB())
	register(t, svc, "alice@x.io")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "alice@x.io", Password: "another-password-1", Name: "Clone",
	})
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := newAuthService(newTestDB())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "valid-password-1"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@x.io", Password: "short"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@x.io", Password: "valid-password-1", Role: "superuser"})
	assert.Error(t, err)
}

func TestLoginSuccess(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)
	register(t, svc, "alice@x.io")

	res, err := svc.Login(context.Background(),
		LoginInput{Email: "alice@x.io", Password: "correct-horse-battery"},
		"127.0.0.1", testUserAgent)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	// The decision depends on the wall-clock hour; a successful login is
	// anything short of BLOCK.
	assert.NotEqual(t, string(domain.DecisionBlock), res.Decision)

	// The login session carries a behavior record and an evaluated risk.
	behavior := db.C(domain.ColSessionBehavior).FindOne(docstore.Query{"session_id": res.SessionID})
	require.NotNil(t, behavior)
	session := db.C(domain.ColSessions).FindOne(docstore.Query{"session_id": res.SessionID})
	assert.InDelta(t, res.RiskScore, docstore.F64(session, "risk_at_login"), 1e-9)
}

func TestLoginWrongPasswordIncrementsFailedCount(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)
	register(t, svc, "alice@x.io")
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginInput{Email: "alice@x.io", Password: "wrong"}, "127.0.0.1", testUserAgent)
	require.Error(t, err)
	_, err = svc.Login(ctx, LoginInput{Email: "alice@x.io", Password: "wrong"}, "127.0.0.1", testUserAgent)
	require.Error(t, err)

	user := db.C(domain.ColUsers).FindOne(docstore.Query{"email": "alice@x.io"})
	assert.Equal(t, 2, docstore.Int(user, "failed_login_count"))

	// A success carries the failures into the session's attempt count, then
	// resets the counter.
	res, err := svc.Login(ctx, LoginInput{Email: "alice@x.io", Password: "correct-horse-battery"}, "127.0.0.1", testUserAgent)
	require.NoError(t, err)

	session := db.C(domain.ColSessions).FindOne(docstore.Query{"session_id": res.SessionID})
	assert.Equal(t, 3, docstore.Int(session, "login_attempt_count"))
	user = db.C(domain.ColUsers).FindOne(docstore.Query{"email": "alice@x.io"})
	assert.Equal(t, 0, docstore.Int(user, "failed_login_count"))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(newTestDB())
	_, err := svc.Login(context.Background(),
		LoginInput{Email: "ghost@x.io", Password: "whatever-pass"}, "127.0.0.1", testUserAgent)
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)
	register(t, svc, "alice@x.io")
	ctx := context.Background()

	for i := 0; i < guard.MaxAttempts; i++ {
		_, err := svc.Login(ctx, LoginInput{Email: "alice@x.io", Password: "wrong"}, "127.0.0.1", testUserAgent)
		require.Error(t, err)
	}

	// Even the correct password is rejected while locked.
	_, err := svc.Login(ctx, LoginInput{Email: "alice@x.io", Password: "correct-horse-battery"}, "127.0.0.1", testUserAgent)
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "ACCOUNT_LOCKED", appErr.Code)
}

func TestLoginDisabledAccount(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)
	register(t, svc, "alice@x.io")
	db.C(domain.ColUsers).UpdateOne(
		docstore.Query{"email": "alice@x.io"},
		docstore.Set(map[string]any{"is_active": false}),
	)

	_, err := svc.Login(context.Background(),
		LoginInput{Email: "alice@x.io", Password: "correct-horse-battery"}, "127.0.0.1", testUserAgent)
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)
	res := register(t, svc, "alice@x.io")

	require.NoError(t, svc.Logout(context.Background(), res.SessionID))
	session := db.C(domain.ColSessions).FindOne(docstore.Query{"session_id": res.SessionID})
	assert.True(t, docstore.Bool(session, "revoked"))
	assert.Equal(t, "logout", docstore.Str(session, "revoke_reason"))

	assert.Error(t, svc.Logout(context.Background(), "no-such-session"))
}

func TestAppLogin(t *testing.T) {
	db := newTestDB()
	svc := newAuthService(db)
	reg := register(t, svc, "alice@x.io")

	db.C(domain.ColApps).InsertOne(docstore.Document{
		docstore.IDField: "app_crm", "name": "CRM Portal",
	})
	hash := mustHash(t, "cred-password-1")
	db.C(domain.ColUserCredentials).InsertOne(docstore.Document{
		"user_id":       reg.UserID,
		"app_id":        "app_crm",
		"username":      "alice",
		"password_hash": hash,
	})

	res, err := svc.AppLogin(context.Background(),
		AppLoginInput{AppID: "app_crm", Username: "alice", Password: "cred-password-1"},
		"127.0.0.1", testUserAgent)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, res.UserID)

	// The app shows up as the session's first accessed service by name.
	behavior := db.C(domain.ColSessionBehavior).FindOne(docstore.Query{"session_id": res.SessionID})
	require.NotNil(t, behavior)
	assert.Equal(t, []string{"CRM Portal"}, docstore.StrSlice(behavior, "accessed_services"))

	_, err = svc.AppLogin(context.Background(),
		AppLoginInput{AppID: "app_crm", Username: "alice", Password: "wrong"},
		"127.0.0.1", testUserAgent)
	assert.Error(t, err)

	_, err = svc.AppLogin(context.Background(),
		AppLoginInput{AppID: "app_crm", Username: "nobody", Password: "cred-password-1"},
		"127.0.0.1", testUserAgent)
	assert.Error(t, err)
}
