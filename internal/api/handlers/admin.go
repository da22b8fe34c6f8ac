package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/pysugar/loanpilot/internal/db"
	"gorm.io/gorm"
)

// GetAPIKeyHandler returns the client API key
func GetAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeAPIKey(w, db.GetAPIKey(database))
	}
}

// RegenerateAPIKeyHandler generates a new API key
func RegenerateAPIKeyHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeAPIKey(w, db.RegenerateAPIKey(database))
	}
}

func writeAPIKey(w http.ResponseWriter, apiKey string) {
	masked := false
	if shouldMaskSensitiveData() {
		apiKey = db.MaskAPIKey(apiKey)
		masked = true
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_key": apiKey,
		"masked":  masked,
	})
}

func shouldMaskSensitiveData() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LOANPILOT_MASK_SENSITIVE")))
	return v == "1" || v == "true" || v == "yes"
}
