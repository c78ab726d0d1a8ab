package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
	"github.com/zerotrust/platform/internal/guard"
	"github.com/zerotrust/platform/internal/risk"
	"github.com/zerotrust/platform/internal/service"
)

// newTestServer wires a router mirroring the production layout against an
// in-memory store.
func newTestServer(t *testing.T) (*chi.Mux, *docstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := docstore.New()
	for _, name := range domain.AllCollections {
		db.CreateCollection(name)
	}

	jwtMgr := auth.NewJWTManager("handler-test-secret-0123456789abcdef", time.Hour)
	evaluator := risk.NewEvaluator(db, nil, nil, nil, logger)
	authSvc := service.NewAuthService(db, jwtMgr, evaluator)
	activitySvc := service.NewActivityService(db, evaluator)
	adminSvc := service.NewAdminService(db, nil, logger)

	authHandler := NewAuthHandler(authSvc, adminSvc)
	userHandler := NewUserHandler(activitySvc)
	healthHandler := NewHealthHandler(db)

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(JSONContentType)

	r.Get("/health", healthHandler.Liveness)
	r.Get("/api/health", healthHandler.Health)
	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(jwtMgr, db))
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/user/profile", userHandler.Profile)
		r.Post("/api/app-action", userHandler.AppAction)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/api/admin/dashboard", func(w http.ResponseWriter, r *http.Request) {
				RespondJSON(w, http.StatusOK, adminSvc.Dashboard())
			})
		})
	})
	return r, db
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])

	rec = doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(len(domain.AllCollections)), body["collections"])
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@x.io",
		"password": "correct-horse-battery",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@x.io",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodeBody(t, rec)
	token, _ := login["access_token"].(string)
	require.NotEmpty(t, token)

	rec = doJSON(t, router, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody(t, rec)
	assert.Equal(t, "alice@x.io", profile["email"])
	assert.Equal(t, "Alice", profile["name"])
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	router, _ := newTestServer(t)
	payload := map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery", "name": "Alice",
	}

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/register", "", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeBody(t, rec)["code"])
}

func TestLoginBadCredentials(t *testing.T) {
	router, _ := newTestServer(t)
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ghost@x.io", "password": "whatever-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	router, _ := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/user/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	router, _ := newTestServer(t)
	doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery", "name": "Alice",
	})
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeBody(t, rec)["access_token"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The session behind the token is revoked; continuous verification
	// rejects the still-unexpired token.
	rec = doJSON(t, router, http.MethodGet, "/api/user/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRouteForbiddenForUser(t *testing.T) {
	router, _ := newTestServer(t)
	doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery", "name": "Alice",
	})
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeBody(t, rec)["access_token"].(string)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/dashboard", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRouteAllowsAdmin(t *testing.T) {
	router, _ := newTestServer(t)
	doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "root@x.io", "password": "correct-horse-battery", "name": "Root", "role": "admin",
	})
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "root@x.io", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeBody(t, rec)["access_token"].(string)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["total_users"])
}

func TestAppActionThroughRouter(t *testing.T) {
	router, db := newTestServer(t)
	doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery", "name": "Alice",
	})
	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@x.io", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeBody(t, rec)["access_token"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/app-action", token, map[string]string{
		"app_id": "app_crm", "action": "view",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", decodeBody(t, rec)["status"])

	assert.Equal(t, 1, db.C(domain.ColUserActivityLogs).CountDocuments(docstore.Query{"action": "view"}))

	rec = doJSON(t, router, http.MethodPost, "/api/app-action", token, map[string]string{
		"action": "view",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := guard.NewRateLimiter(2, time.Minute)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "1.2.3.4:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "1.2.3.4:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client is unaffected.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "5.6.7.8:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	assert.Equal(t, "10.0.0.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(req))

	// A proxy chain resolves to the first hop.
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "fixed-id", seen)
}

func TestRespondErrorMapsAppErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, domain.ErrNotFound("missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, rec)["code"])

	rec = httptest.NewRecorder()
	RespondError(rec, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
