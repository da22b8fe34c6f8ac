package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pysugar/loanpilot/internal/monitor"
)

// GetHistoryHandler returns query logs. With page or search it paginates;
// otherwise it returns the latest limit logs, optionally from the last
// since minutes.
func GetHistoryHandler(qm *monitor.QueryMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Has("page") || query.Get("search") != "" {
			page := queryInt(r, "page", 1)
			pageSize := queryInt(r, "page_size", 50)
			logs, total := qm.GetLogsWithPagination(page, pageSize, query.Get("search"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"logs":      logs,
				"total":     total,
				"page":      page,
				"page_size": pageSize,
			})
			return
		}

		logs := qm.GetLogs(queryInt(r, "limit", 100), queryInt(r, "since", 0))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logs":  logs,
			"count": len(logs),
		})
	}
}

// GetHistoryStatsHandler returns aggregated query statistics
func GetHistoryStatsHandler(qm *monitor.QueryMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stats":   qm.GetStats(),
			"enabled": qm.IsEnabled(),
		})
	}
}

// ClearHistoryHandler clears all query logs
func ClearHistoryHandler(qm *monitor.QueryMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := qm.Clear(); err != nil {
			http.Error(w, "Failed to clear logs: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// ToggleHistoryHandler enables or disables query history
func ToggleHistoryHandler(qm *monitor.QueryMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enabled bool `json:"enabled"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		qm.SetEnabled(req.Enabled)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": qm.IsEnabled(),
		})
	}
}
