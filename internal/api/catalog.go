package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nkoval/rolelab/internal/catalog"
)

// CatalogHandler serves the read-only scenario catalog.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/scenarios", func(r chi.Router) {
		r.Get("/", h.ListScenarios)
		r.Get("/{scenarioID}", h.GetScenario)
	})
}

// ListScenarios returns all scenarios.
func (h *CatalogHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.catalog.Scenarios())
}

// GetScenario returns one scenario with its personas.
func (h *CatalogHandler) GetScenario(w http.ResponseWriter, r *http.Request) {
	scenario := h.catalog.Scenario(chi.URLParam(r, "scenarioID"))
	if scenario == nil {
		Error(w, http.StatusNotFound, "scenario not found")
		return
	}
	JSON(w, http.StatusOK, scenario)
}
