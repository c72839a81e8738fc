package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// FloatHandler handles float detail and region lookups.
type FloatHandler struct {
	logger *observability.Logger
	engine *engine.Engine
}

// NewFloatHandler creates a new float handler.
func NewFloatHandler(logger *observability.Logger, eng *engine.Engine) *FloatHandler {
	return &FloatHandler{
		logger: logger.WithComponent("http"),
		engine: eng,
	}
}

// Get handles GET /api/v1/floats/{wmoId}.
func (h *FloatHandler) Get(w http.ResponseWriter, r *http.Request) {
	wmoID := chi.URLParam(r, "wmoId")
	if wmoID == "" {
		writeError(w, http.StatusBadRequest, "wmoId is required", "")
		return
	}

	float, err := h.engine.GetFloat(r.Context(), wmoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "float not found", wmoID)
			return
		}
		h.logger.Error().Err(err).Str("wmo_id", wmoID).Msg("Float lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	writeJSON(w, http.StatusOK, float)
}

// RegionDTO describes one named region.
type RegionDTO struct {
	Name string              `json:"name"`
	BBox storage.BoundingBox `json:"bbox"`
}

// Regions handles GET /api/v1/regions.
func (h *FloatHandler) Regions(w http.ResponseWriter, r *http.Request) {
	names := query.RegionNames()
	regions := make([]RegionDTO, 0, len(names))
	for _, name := range names {
		bbox, _ := query.ResolveRegion(name)
		regions = append(regions, RegionDTO{Name: name, BBox: bbox})
	}
	writeJSON(w, http.StatusOK, regions)
}
