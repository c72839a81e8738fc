// Package handlers provides HTTP handlers for the Argo engine API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/observability"
	"github.com/oceanlens/argo-engine/internal/query"
	"github.com/oceanlens/argo-engine/internal/storage"
)

// QueryHandler handles query and comparison requests.
type QueryHandler struct {
	logger *observability.Logger
	engine *engine.Engine
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(logger *observability.Logger, eng *engine.Engine) *QueryHandler {
	return &QueryHandler{
		logger: logger.WithComponent("http"),
		engine: eng,
	}
}

// QueryRequestDTO represents the API request for queries. Either a
// natural-language question or explicit criteria must be provided.
type QueryRequestDTO struct {
	Question string          `json:"question,omitempty"`
	Criteria *query.Criteria `json:"criteria,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// CompareRequestDTO represents the API request for comparisons.
type CompareRequestDTO struct {
	Regions   []string           `json:"regions"`
	Variables []storage.Variable `json:"variables,omitempty"`
}

// Query handles POST /api/v1/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := observability.ContextWithTraceID(r.Context(), uuid.New().String())

	var reqDTO QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if reqDTO.Question == "" && reqDTO.Criteria == nil {
		writeError(w, http.StatusBadRequest, "question or criteria is required", "")
		return
	}

	if reqDTO.Question != "" {
		result, err := h.engine.Ask(ctx, reqDTO.Question)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.engine.Query(ctx, *reqDTO.Criteria, reqDTO.Limit)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.Response{Kind: "query", Query: result})
}

// Compare handles POST /api/v1/compare.
func (h *QueryHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := observability.ContextWithTraceID(r.Context(), uuid.New().String())

	var reqDTO CompareRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.engine.Compare(ctx, reqDTO.Regions, reqDTO.Variables)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Metrics handles GET /api/v1/metrics.
func (h *QueryHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.GetMetrics())
}

// writeEngineError maps engine errors to HTTP statuses. Validation
// problems surface field-level detail; storage failures stay opaque.
func (h *QueryHandler) writeEngineError(w http.ResponseWriter, err error) {
	var validationErr *query.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error(), validationErr.Field)
	case errors.Is(err, engine.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, err.Error(), "regions")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "")
	default:
		h.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

// writeJSON renders a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders a JSON error response.
func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":  message,
		"detail": detail,
	})
}
