package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/engine"
	"github.com/pysugar/loanpilot/internal/logging"
	"github.com/pysugar/loanpilot/internal/scripts"
)

// MaxQueryLength bounds the accepted query text.
const MaxQueryLength = 500

// SelectedProgram is one program chosen in the client.
type SelectedProgram struct {
	ProgramName string `json:"programName"`
	Servicer    string `json:"servicer"`
}

// QueryRequest is the body of the query endpoints. Form posts carry
// selectedPrograms as JSON text.
type QueryRequest struct {
	Query            string            `json:"query"`
	SelectedPrograms []SelectedProgram `json:"selectedPrograms,omitempty"`
	ProgramContext   string            `json:"programContext,omitempty"`
}

func (q QueryRequest) refs() []db.ProgramRef {
	refs := make([]db.ProgramRef, 0, len(q.SelectedPrograms))
	for _, p := range q.SelectedPrograms {
		refs = append(refs, db.ProgramRef{Servicer: p.Servicer, Program: p.ProgramName})
	}
	return refs
}

func parseQueryRequest(r *http.Request) (QueryRequest, error) {
	var req QueryRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req.Query = r.PostForm.Get("query")
		req.ProgramContext = r.PostForm.Get("programContext")
		if raw := strings.TrimSpace(r.PostForm.Get("selectedPrograms")); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.SelectedPrograms); err != nil {
				log.Printf("⚠️ Could not parse selected programs: %v", err)
				req.SelectedPrograms = nil
			}
		}
	}

	req.Query = strings.TrimSpace(req.Query)
	switch {
	case req.Query == "":
		return req, fmt.Errorf("query cannot be empty")
	case len(req.Query) > MaxQueryLength:
		return req, fmt.Errorf("query longer than %d characters", MaxQueryLength)
	}
	return req, nil
}

// ExecuteQueryHandler routes and runs a natural-language query. Failed
// queries are reported in the envelope with status 200.
func ExecuteQueryHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseQueryRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.ProgramContext != "" {
			log.Printf("📌 [%s] Program context: %s", logging.GetRequestID(r.Context()), req.ProgramContext)
		}

		result := eng.ExecuteQuery(r.Context(), req.Query, engine.SelectionFromPrograms(req.refs()))
		writeJSON(w, http.StatusOK, result)
	}
}

// RouteQueryHandler returns the routing decision for a query without
// running it.
func RouteQueryHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseQueryRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		decision, rewritten := eng.Route(r.Context(), req.Query, engine.SelectionFromPrograms(req.refs()))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   decision.Matched(),
			"decision":  decision,
			"rewritten": rewritten,
		})
	}
}

// ExecuteScriptHandler runs a script with explicit parameters.
func ExecuteScriptHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Parameters map[string]any `json:"parameters"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
				return
			}
		}

		name := chi.URLParam(r, "name")
		result := eng.ExecuteScript(r.Context(), name, scripts.NormalizeParams(req.Parameters))
		writeJSON(w, http.StatusOK, result)
	}
}
