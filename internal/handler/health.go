package handler

import (
	"net/http"
	"time"

	"github.com/zerotrust/platform/internal/docstore"
)

// HealthHandler serves liveness endpoints.
type HealthHandler struct {
	db *docstore.Store
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *docstore.Store) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"collections": len(h.db.CollectionNames()),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
