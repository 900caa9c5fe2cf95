package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nkoval/rolelab/internal/store"
)

// HealthHandler reports service and database health.
type HealthHandler struct {
	repo      store.Repository
	aiEnabled bool
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(repo store.Repository, aiEnabled bool) *HealthHandler {
	return &HealthHandler{repo: repo, aiEnabled: aiEnabled}
}

// RegisterRoutes registers the readiness route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Ready)
}

// Ready returns 200 when the database is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "database unreachable",
		})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"ai_enabled": h.aiEnabled,
	})
}
