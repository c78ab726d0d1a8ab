package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/demo"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/infra"
	"github.com/zerotrust/platform/internal/risk"
	"github.com/zerotrust/platform/internal/service"
)

// AdminHandler serves the security-operations endpoints.
type AdminHandler struct {
	adminSvc    *service.AdminService
	activitySvc *service.ActivityService
	evaluator   *risk.Evaluator
	db          *docstore.Store
	hub         *infra.AlertHub
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc *service.AdminService, activitySvc *service.ActivityService, evaluator *risk.Evaluator, db *docstore.Store, hub *infra.AlertHub) *AdminHandler {
	return &AdminHandler{
		adminSvc:    adminSvc,
		activitySvc: activitySvc,
		evaluator:   evaluator,
		db:          db,
		hub:         hub,
	}
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.Dashboard())
}

// Users handles GET /api/admin/users.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.Users())
}

// Incidents handles GET /api/admin/incidents.
func (h *AdminHandler) Incidents(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.Incidents(100))
}

// Alerts handles GET /api/admin/alerts.
func (h *AdminHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.Alerts(100))
}

// ActiveSessions handles GET /api/admin/active-sessions.
func (h *AdminHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.ActiveSessions())
}

// BlockedUsers handles GET /api/admin/blocked-users.
func (h *AdminHandler) BlockedUsers(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.BlockedUsers())
}

// UserAction handles POST /api/admin/user/{userID}/action.
func (h *AdminHandler) UserAction(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	admin := auth.UserFromContext(r.Context())
	err := h.adminSvc.UserAction(r.Context(),
		docstore.Str(admin, docstore.IDField), chi.URLParam(r, "userID"),
		input.Action, input.Reason, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "success", "action": input.Action})
}

// RiskHistory handles GET /api/admin/user/{userID}/risk-history.
func (h *AdminHandler) RiskHistory(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.RiskHistory(chi.URLParam(r, "userID"), 50))
}

// UserSessions handles GET /api/admin/user/{userID}/sessions.
func (h *AdminHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.UserSessions(chi.URLParam(r, "userID")))
}

// RiskBreakdown handles GET /api/admin/user/{userID}/risk-breakdown.
func (h *AdminHandler) RiskBreakdown(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.RiskBreakdown(chi.URLParam(r, "userID")))
}

// ActivityAnalytics handles GET /api/admin/user/{userID}/activity-analytics.
func (h *AdminHandler) ActivityAnalytics(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.ActivityAnalytics(chi.URLParam(r, "userID")))
}

// SimulateAction handles POST /api/admin/user/{userID}/simulate-action.
func (h *AdminHandler) SimulateAction(w http.ResponseWriter, r *http.Request) {
	var input service.ActionInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.activitySvc.SimulateAction(r.Context(), chi.URLParam(r, "userID"), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// AuditTrail handles GET /api/admin/audit-trail.
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.AuditTrail(200))
}

// Apps handles GET /api/admin/apps.
func (h *AdminHandler) Apps(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.Apps())
}

// CreateApp handles POST /api/admin/apps.
func (h *AdminHandler) CreateApp(w http.ResponseWriter, r *http.Request) {
	var input service.AppInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	id, err := h.adminSvc.CreateApp(input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "created"})
}

// AppUsers handles GET /api/admin/app/{appID}/users.
func (h *AdminHandler) AppUsers(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.AppUsers(chi.URLParam(r, "appID")))
}

// CreateCredential handles POST /api/admin/app/{appID}/user.
func (h *AdminHandler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var input service.CredentialInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	id, err := h.adminSvc.CreateCredential(r.Context(), chi.URLParam(r, "appID"), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "created"})
}

// LoginWindows handles GET /api/admin/login-windows.
func (h *AdminHandler) LoginWindows(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.LoginWindows())
}

// CreateLoginWindow handles POST /api/admin/login-windows.
func (h *AdminHandler) CreateLoginWindow(w http.ResponseWriter, r *http.Request) {
	var input service.LoginWindowInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	id, err := h.adminSvc.CreateLoginWindow(input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "created"})
}

// EmergencyRequests handles GET /api/admin/emergency-requests.
func (h *AdminHandler) EmergencyRequests(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.adminSvc.EmergencyRequests())
}

// SimulateAttack handles POST /api/demo/simulate-attack.
func (h *AdminHandler) SimulateAttack(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TargetUserID string `json:"target_user_id"`
	}
	// Body is optional; a missing or empty body picks a random target.
	_ = DecodeJSON(r, &input)

	result, err := demo.SimulateAttack(r.Context(), h.db, h.evaluator, input.TargetUserID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// AlertFeed handles GET /api/admin/alert-feed, upgrading to a WebSocket that
// streams alerts and incidents as they are created.
func (h *AdminHandler) AlertFeed(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, uuid.NewString())
}
