// Package config reads LoanPilot settings from a .env file and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pysugar/loanpilot/internal/embedding"
	"github.com/pysugar/loanpilot/internal/llm"
	"github.com/pysugar/loanpilot/internal/llm/registry"
	"github.com/pysugar/loanpilot/internal/retriever"
)

// DefaultEnvFile is loaded when Load is called with an empty path.
const DefaultEnvFile = ".env"

const (
	DefaultDBPath         = "loanpilot.db"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultHost           = "0.0.0.0"
	DefaultPort           = "8090"
	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10
)

// Config holds every setting of the server and the CLI.
type Config struct {
	// Anthropic
	APIKey   string
	Model    string
	BaseURL  string
	AuthMode string

	ModelsFile string

	DBPath         string
	ScratchpadPath string

	EmbeddingProvider string
	OllamaURL         string
	EmbeddingModel    string

	RouterTier   registry.Tier
	RewriterTier registry.Tier
	RAGTopK      int

	Host           string
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int

	Verbose bool
}

// Load reads envFile (a missing file is ignored) and then the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := loadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:            strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		Model:             strings.TrimSpace(os.Getenv(registry.ModelOverrideEnv)),
		BaseURL:           getEnv("ANTHROPIC_BASE_URL", llm.DefaultBaseURL),
		AuthMode:          getEnv("ANTHROPIC_AUTH_MODE", llm.AuthModeAPIKey),
		ModelsFile:        strings.TrimSpace(os.Getenv(registry.ModelsFileEnv)),
		DBPath:            getEnv("DB_PATH", DefaultDBPath),
		ScratchpadPath:    strings.TrimSpace(os.Getenv("SCRATCHPAD_PATH")),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", embedding.ProviderOllama),
		OllamaURL:         getEnv("OLLAMA_URL", DefaultOllamaURL),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", DefaultEmbeddingModel),
		Host:              getEnv("HOST", DefaultHost),
		Port:              getEnv("PORT", DefaultPort),
		Verbose:           os.Getenv("LOANPILOT_VERBOSE") == "1",
	}

	var err error
	if cfg.RouterTier, err = registry.ParseTier(getEnv("ROUTER_TIER", string(registry.Balanced))); err != nil {
		return nil, fmt.Errorf("ROUTER_TIER: %w", err)
	}
	if cfg.RewriterTier, err = registry.ParseTier(getEnv("REWRITER_TIER", string(registry.Fast))); err != nil {
		return nil, fmt.Errorf("REWRITER_TIER: %w", err)
	}
	if cfg.RAGTopK, err = getInt("RAG_TOP_K", retriever.DefaultTopK); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", DefaultRateLimitBurst); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", DefaultRateLimitRPS); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// HasCredential reports whether an Anthropic credential is configured.
func (c *Config) HasCredential() bool {
	return c.APIKey != ""
}

// Anthropic returns the client configuration.
func (c *Config) Anthropic() llm.AnthropicConfig {
	return llm.AnthropicConfig{
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		AuthMode: c.AuthMode,
		Verbose:  c.Verbose,
	}
}

// Embedding returns the embedder configuration.
func (c *Config) Embedding() embedding.Config {
	return embedding.Config{
		Provider:  c.EmbeddingProvider,
		OllamaURL: c.OllamaURL,
		Model:     c.EmbeddingModel,
	}
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: invalid positive number %q", key, v)
	}
	return f, nil
}
