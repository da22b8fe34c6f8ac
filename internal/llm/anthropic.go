package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pysugar/loanpilot/internal/logging"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultAPIVersion = "2023-06-01"
	messagesPath      = "/v1/messages"

	AuthModeAPIKey = "x-api-key"
	AuthModeBearer = "bearer"
)

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	AuthMode   string
	APIVersion string
	Timeout    time.Duration
	Verbose    bool
	// HTTPClient overrides the transport. In bearer mode it becomes the
	// base client under the oauth2 transport.
	HTTPClient *http.Client
}

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	authMode   string
	apiVersion string
	verbose    bool
}

// NewAnthropicClient creates a client. It fails with ErrNoCredential when
// cfg.APIKey is empty so callers can degrade instead of calling out.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoCredential
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	authMode := strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	switch authMode {
	case "", AuthModeAPIKey:
		authMode = AuthModeAPIKey
	case AuthModeBearer:
	default:
		return nil, fmt.Errorf("unsupported anthropic auth mode %q", cfg.AuthMode)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if authMode == AuthModeBearer {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		bearer := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.APIKey,
			TokenType:   "Bearer",
		}))
		bearer.Timeout = httpClient.Timeout
		httpClient = bearer
	}

	return &AnthropicClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		authMode:   authMode,
		apiVersion: apiVersion,
		verbose:    cfg.Verbose,
	}, nil
}

// CreateMessage sends one non-streaming Messages API request.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if c.verbose {
		log.Printf("📤 [VERBOSE] [%s] anthropic request model=%s payload=%s",
			logging.GetRequestID(ctx), req.Model, logging.TruncateBytes(body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", c.apiVersion)
	if c.authMode == AuthModeAPIKey {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if c.verbose {
		log.Printf("📥 [VERBOSE] [%s] anthropic response status=%d body=%s",
			logging.GetRequestID(ctx), resp.StatusCode, logging.TruncateBytes(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		apiErr.RetryAfter = parseRetryAfter(resp.Header)
		return nil, apiErr
	}

	var out MessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Type = envelope.Error.Type
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(logging.TruncateBytes(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
