package middleware

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond rps sustained and burst peak with 429.
// The limit is shared by every client of the process.
func RateLimit(rps float64, burst int) func(next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(max(1, int(math.Ceil(1/rps))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Printf("⚠️ [RateLimit] Rejected %s %s", r.Method, r.URL.Path)
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", "rate_limit_error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
