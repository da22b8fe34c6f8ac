package handlers

import (
	"net/http"
	"time"

	"github.com/pysugar/loanpilot/internal/engine"
	"github.com/pysugar/loanpilot/internal/version"
)

// HealthHandler reports whether queries can be served.
func HealthHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := eng.CheckHealth()
		status := http.StatusOK
		if !h.Available {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{
			"success":            h.Available,
			"available":          h.Available,
			"dbPath":             h.DBPath,
			"scriptCount":        h.ScriptCount,
			"llmAvailable":       h.LLMAvailable,
			"retrieverAvailable": h.RetrieverAvailable,
			"error":              h.Error,
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// VersionHandler returns build metadata.
func VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version.Version,
			"commit":     version.Commit,
			"build_time": version.BuildTime,
		})
	}
}
