package handler

import (
	"net/http"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/service"
)

// AuthHandler handles registration and the login endpoints.
type AuthHandler struct {
	authSvc  *service.AuthService
	adminSvc *service.AdminService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, adminSvc *service.AdminService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, adminSvc: adminSvc}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.authSvc.Register(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.authSvc.Login(r.Context(), input, ClientIP(r), r.UserAgent())
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// AppLogin handles POST /api/app-login.
func (h *AuthHandler) AppLogin(w http.ResponseWriter, r *http.Request) {
	var input service.AppLoginInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.authSvc.AppLogin(r.Context(), input, ClientIP(r), r.UserAgent())
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := h.authSvc.Logout(r.Context(), claims.SessionID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// EmergencyRequest handles POST /api/auth/emergency-request.
func (h *AuthHandler) EmergencyRequest(w http.ResponseWriter, r *http.Request) {
	var input struct {
		AppID  string `json:"app_id"`
		Reason string `json:"reason"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	user := auth.UserFromContext(r.Context())
	id, err := h.adminSvc.CreateEmergencyRequest(docstore.Str(user, docstore.IDField), input.AppID, input.Reason)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"request_id": id, "status": "pending"})
}
