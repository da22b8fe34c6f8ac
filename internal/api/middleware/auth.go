package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pysugar/loanpilot/internal/db"
	"gorm.io/gorm"
)

// APIKeyAuth middleware validates the client API key stored in the
// configs table.
func APIKeyAuth(database *gorm.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedKey := db.GetAPIKey(database)
			if expectedKey == "" {
				// No API key configured, allow all requests (first-run scenario)
				next.ServeHTTP(w, r)
				return
			}

			if keyMatches(requestKey(r), expectedKey) {
				next.ServeHTTP(w, r)
				return
			}

			writeError(w, http.StatusUnauthorized, "Invalid API key", "authentication_error")
		})
	}
}

// requestKey returns the key from the Authorization bearer token, the
// x-api-key header or the 'key' query parameter, in that order.
func requestKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if apiKeyHeader := r.Header.Get("x-api-key"); apiKeyHeader != "" {
		return apiKeyHeader
	}
	return r.URL.Query().Get("key")
}

func keyMatches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success": false, "error": {"message": "` + message + `", "type": "` + errType + `"}}`))
}
