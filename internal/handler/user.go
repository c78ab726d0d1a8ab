package handler

import (
	"net/http"

	"github.com/zerotrust/platform/internal/auth"
	"github.com/zerotrust/platform/internal/docstore"
	"github.com/zerotrust/platform/internal/service"
)

// UserHandler serves the authenticated user's own surface plus app-action
// recording.
type UserHandler struct {
	activitySvc *service.ActivityService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(activitySvc *service.ActivityService) *UserHandler {
	return &UserHandler{activitySvc: activitySvc}
}

// Profile handles GET /api/user/profile.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	session := auth.SessionFromContext(r.Context())
	RespondJSON(w, http.StatusOK, h.activitySvc.Profile(user, session))
}

// RiskScore handles GET /api/user/risk-score. Runs a fresh evaluation.
func (h *UserHandler) RiskScore(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	session := auth.SessionFromContext(r.Context())
	result := h.activitySvc.RiskScore(r.Context(),
		docstore.Str(user, docstore.IDField), docstore.Str(session, "session_id"))
	RespondJSON(w, http.StatusOK, result)
}

// Activity handles GET /api/user/activity.
func (h *UserHandler) Activity(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	logs := h.activitySvc.RecentActivity(docstore.Str(user, docstore.IDField), 50)
	RespondJSON(w, http.StatusOK, logs)
}

// AppAction handles POST /api/app-action.
func (h *UserHandler) AppAction(w http.ResponseWriter, r *http.Request) {
	var input service.ActionInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	user := auth.UserFromContext(r.Context())
	session := auth.SessionFromContext(r.Context())
	result, err := h.activitySvc.RecordAction(r.Context(),
		docstore.Str(user, docstore.IDField), docstore.Str(session, "session_id"), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
