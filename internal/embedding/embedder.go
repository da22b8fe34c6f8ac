// Package embedding maps text to fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Providers accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
	ProviderNone   = "none"
)

var (
	// ErrModelNotFound means the backend does not have the embedding model.
	ErrModelNotFound = errors.New("embedding model not found")
	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("embedding backend unavailable")
	// ErrDisabled is returned by New for the "none" provider.
	ErrDisabled = errors.New("embeddings disabled")
)

// Embedder maps text to a vector. Every vector from one Embedder has the
// same length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Config selects and configures an Embedder.
type Config struct {
	Provider   string
	OllamaURL  string
	Model      string
	Dimensions int
}

// New returns the Embedder named by cfg.Provider. An empty provider means
// Ollama.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.Model, nil), nil
	case ProviderHash:
		return NewHash(cfg.Dimensions), nil
	case ProviderNone, "off", "disabled":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// EmbedAll embeds texts in order, stopping at the first error.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		if len(vectors) > 0 && len(vec) != len(vectors[0]) {
			return nil, fmt.Errorf("embed text %d: dimension %d differs from %d", i, len(vec), len(vectors[0]))
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}
