// Package api assembles the HTTP routes of the query server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/loanpilot/internal/api/handlers"
	"github.com/pysugar/loanpilot/internal/api/middleware"
	"github.com/pysugar/loanpilot/internal/engine"
)

// Options tune the router.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter mounts every endpoint under /api. Health and version are
// public; everything else requires the stored API key and is rate limited.
func NewRouter(stack *engine.Stack, opts Options) http.Handler {
	eng := stack.Engine

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.AccessLog {
		r.Use(chimiddleware.Logger)
	}
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// ============================================
		// Public Routes (No Auth Required)
		// ============================================
		r.Get("/health", handlers.HealthHandler(eng))
		r.Get("/version", handlers.VersionHandler())

		// ============================================
		// Protected Routes (API Key Required)
		// ============================================
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(stack.DB))
			if opts.RateLimitRPS > 0 {
				r.Use(middleware.RateLimit(opts.RateLimitRPS, max(1, opts.RateLimitBurst)))
			}

			// Queries
			r.Post("/query/execute", handlers.ExecuteQueryHandler(eng))
			r.Post("/query/route", handlers.RouteQueryHandler(eng))

			// Scripts
			r.Get("/scripts", handlers.ScriptsHandler(eng))
			r.Post("/scripts/{name}/execute", handlers.ExecuteScriptHandler(eng))

			// Parameters and programs
			r.Get("/parameters", handlers.ParametersHandler(eng))
			r.Get("/parameters/search", handlers.SearchParametersHandler(eng))
			r.Get("/programs", handlers.ProgramsHandler(eng))
			r.Get("/programs/details", handlers.ProgramDetailsHandler(eng))
			r.Get("/programs/parameter", handlers.ProgramParameterHandler(eng))

			// Models
			r.Get("/models", handlers.ModelsHandler(eng))
			r.Post("/models/{tier}/probe", handlers.ProbeModelHandler(eng))

			// History
			r.Get("/history", handlers.GetHistoryHandler(stack.Monitor))
			r.Get("/history/stats", handlers.GetHistoryStatsHandler(stack.Monitor))
			r.Delete("/history", handlers.ClearHistoryHandler(stack.Monitor))
			r.Post("/history/toggle", handlers.ToggleHistoryHandler(stack.Monitor))

			// API Key management
			r.Get("/admin/apikey", handlers.GetAPIKeyHandler(stack.DB))
			r.Post("/admin/apikey/regenerate", handlers.RegenerateAPIKeyHandler(stack.DB))
		})
	})
	return r
}
