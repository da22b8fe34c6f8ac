package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pysugar/loanpilot/internal/db"
	"github.com/pysugar/loanpilot/internal/engine"
	"github.com/pysugar/loanpilot/internal/retriever"
)

// ScriptsHandler lists the registered scripts.
func ScriptsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := eng.Scripts()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"scripts": list,
		})
	}
}

// ParametersHandler lists the parameter descriptors.
func ParametersHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := db.ListParameters(eng.DB())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"parameters": params,
			"count":      len(params),
		})
	}
}

// SearchParametersHandler returns the descriptors most relevant to q. When
// retrieval is unavailable the static phrase mappings are consulted.
func SearchParametersHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeError(w, http.StatusBadRequest, "missing query parameter q")
			return
		}
		k := queryInt(r, "k", retriever.DefaultTopK)

		ret := eng.Retriever()
		if !ret.Available() {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"available": false,
				"columns":   retriever.StaticLookup(q),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"available": true,
			"results":   ret.Retrieve(r.Context(), q, k),
		})
	}
}

// ProgramsHandler lists programs, optionally for one servicer, and the
// known servicers.
func ProgramsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		programs, err := db.ListPrograms(eng.DB(), strings.TrimSpace(r.URL.Query().Get("servicer")))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		servicers, err := db.ListServicers(eng.DB())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if programs == nil {
			programs = []db.ProgramRef{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"programs":  programs,
			"servicers": servicers,
			"count":     len(programs),
		})
	}
}

// ProgramDetailsHandler returns headline values of the programs named by
// the repeated program query parameter.
func ProgramDetailsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		details, err := eng.ProgramDetails(strings.TrimSpace(query.Get("servicer")), query["program"])
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"programs": details,
		})
	}
}

// ProgramParameterHandler returns one parameter value of one program.
func ProgramParameterHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		servicer, program, param := query.Get("servicer"), query.Get("program"), query.Get("param")
		if program == "" || param == "" {
			writeError(w, http.StatusBadRequest, "program and param are required")
			return
		}

		value, err := eng.ProgramParameter(servicer, program, param)
		switch {
		case errors.Is(err, db.ErrProgramNotFound), errors.Is(err, db.ErrUnknownColumn):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"servicer": servicer,
			"program":  program,
			"param":    param,
			"value":    value,
		})
	}
}
