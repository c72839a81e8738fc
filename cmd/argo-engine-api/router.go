// Package main provides the API router setup.
package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/oceanlens/argo-engine/cmd/argo-engine-api/handlers"
	"github.com/oceanlens/argo-engine/cmd/argo-engine-api/middleware"
	"github.com/oceanlens/argo-engine/internal/api/rpc"
	"github.com/oceanlens/argo-engine/internal/config"
	"github.com/oceanlens/argo-engine/internal/engine"
	"github.com/oceanlens/argo-engine/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, eng *engine.Engine, db *sql.DB) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"argo-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	// Initialize handlers
	queryHandler := handlers.NewQueryHandler(logger, eng)
	floatHandler := handlers.NewFloatHandler(logger, eng)
	queryService := rpc.NewQueryService(logger, eng)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", queryHandler.Query)
		r.Post("/compare", queryHandler.Compare)
		r.Get("/floats/{wmoId}", floatHandler.Get)
		r.Get("/regions", floatHandler.Regions)
		r.Get("/metrics", queryHandler.Metrics)
	})

	// Connect-style procedures for RPC clients
	r.Handle(rpc.QueryProcedure, queryService.QueryHandler())
	r.Handle(rpc.CompareProcedure, queryService.CompareHandler())

	return r
}
