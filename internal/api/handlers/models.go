package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/loanpilot/internal/engine"
	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/llm/registry"
)

// ModelsHandler returns the fallback chain and bookkeeping of every tier.
func ModelsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"tiers":   eng.ModelStatus(),
		})
	}
}

// ProbeModelHandler verifies a working model of a tier with a test call.
func ProbeModelHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier, err := registry.ParseTier(chi.URLParam(r, "tier"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		model, err := eng.ProbeTier(r.Context(), tier)
		switch {
		case errors.Is(err, engine.ErrUnknownTier):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			if d := llm.RetryAfter(err); d > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"tier":    tier,
			"model":   model,
		})
	}
}
