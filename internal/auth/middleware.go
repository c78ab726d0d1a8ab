package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/domain"
)

type contextKey string

const (
	claimsKey  contextKey = "auth_claims"
	userKey    contextKey = "auth_user"
	sessionKey contextKey = "auth_session"
)

// ClaimsFromContext extracts JWT claims from request context.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// UserFromContext extracts the authenticated user document.
func UserFromContext(ctx context.Context) docstore.Document {
	u, _ := ctx.Value(userKey).(docstore.Document)
	return u
}

// SessionFromContext extracts the authenticated session document.
func SessionFromContext(ctx context.Context) docstore.Document {
	s, _ := ctx.Value(sessionKey).(docstore.Document)
	return s
}

// Authenticate validates the bearer token, resolves the user and session
// from the store, rejects revoked or expired sessions, and records session
// activity. This is the continuous half of zero trust: a token alone is
// never enough, the session behind it must still be live.
func Authenticate(jwtMgr *JWTManager, db *docstore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidate(r, jwtMgr)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			session := db.C(domain.ColSessions).FindOne(docstore.Query{
				"session_id": claims.SessionID,
				"user_id":    claims.Subject,
			})
			if session == nil || docstore.Bool(session, "revoked") {
				unauthorized(w, "session revoked or invalid")
				return
			}
			if expires, ok := docstore.Time(session, "expires_at"); ok && expires.Before(time.Now().UTC()) {
				unauthorized(w, "session expired")
				return
			}

			user := db.C(domain.ColUsers).FindOne(docstore.Query{docstore.IDField: claims.Subject})
			if user == nil {
				unauthorized(w, "user not found")
				return
			}

			db.C(domain.ColSessions).UpdateOne(
				docstore.Query{"session_id": claims.SessionID},
				docstore.Set(map[string]any{"last_activity": time.Now().UTC()}),
			)

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, userKey, user)
			ctx = context.WithValue(ctx, sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects authenticated requests whose user is not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			unauthorized(w, "no auth context")
			return
		}
		if docstore.Str(user, "role") != domain.RoleAdmin {
			http.Error(w, `{"code":"FORBIDDEN","message":"admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAndValidate(r *http.Request, jwtMgr *JWTManager) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, fmt.Errorf("invalid Authorization format")
	}

	return jwtMgr.ValidateToken(parts[1])
}

func unauthorized(w http.ResponseWriter, msg string) {
	http.Error(w, `{"code":"UNAUTHORIZED","message":"`+msg+`"}`, http.StatusUnauthorized)
}
