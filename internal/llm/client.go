// Package llm is the boundary to the chat-completion backend: request and
// response types, the Client interface, and error classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoCredential is returned when no API key is configured.
var ErrNoCredential = errors.New("llm: no API credential configured")

// Client issues a single Messages API call.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// APIError is a non-2xx reply from the backend.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	// RetryAfter is the delay requested by a 429 or 529 reply.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("anthropic: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("anthropic: status %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

var unavailableMarkers = []string{"deprecated", "not found", "not_found", "invalid"}

// IsModelUnavailable reports whether err says the requested model identifier
// was rejected. Only the error text is inspected, so errors from any backend
// wrapper classify the same way.
func IsModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "model") {
		return false
	}
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
