// Package registry holds the ordered model fallback chain of each
// capability tier.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is a named capability class of interchangeable models.
type Tier string

const (
	Fast     Tier = "fast"
	Balanced Tier = "balanced"
	Powerful Tier = "powerful"
)

const (
	// ModelsFileEnv names an explicit chain file.
	ModelsFileEnv = "LOANPILOT_MODELS_FILE"
	// ModelOverrideEnv names a model tried before every tier chain.
	ModelOverrideEnv = "ANTHROPIC_MODEL"
)

// Tiers lists every tier in ascending capability order.
func Tiers() []Tier {
	return []Tier{Fast, Balanced, Powerful}
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown model tier %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case Fast, Balanced, Powerful:
		return true
	}
	return false
}

// Newest first, most stable last.
var defaultChains = map[Tier][]string{
	Fast: {
		"claude-haiku-4-5",
		"claude-3-5-haiku-latest",
		"claude-3-haiku-20240307",
	},
	Balanced: {
		"claude-sonnet-4-5",
		"claude-3-7-sonnet-latest",
		"claude-sonnet-4-0",
	},
	Powerful: {
		"claude-opus-4-1",
		"claude-opus-4-0",
		"claude-sonnet-4-5",
	},
}

type fileConfig struct {
	Tiers map[string][]string `yaml:"tiers"`
}

// Registry maps tiers to model chains. It is immutable after construction.
type Registry struct {
	chains   map[Tier][]string
	override string
	source   string
}

// Default returns the built-in chains without an override.
func Default() *Registry {
	r, _ := New(nil, "")
	return r
}

// New builds a registry. Tiers missing from chains use the built-in chain;
// a tier given with no usable model identifiers is an error.
func New(chains map[Tier][]string, override string) (*Registry, error) {
	r := &Registry{
		chains:   make(map[Tier][]string, len(defaultChains)),
		override: strings.TrimSpace(override),
		source:   "builtin",
	}
	for _, tier := range Tiers() {
		r.chains[tier] = append([]string(nil), defaultChains[tier]...)
	}
	for tier, models := range chains {
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown model tier %q", tier)
		}
		normalized := normalizeChain(models)
		if len(normalized) == 0 {
			return nil, fmt.Errorf("model tier %q has no models", tier)
		}
		r.chains[tier] = normalized
	}
	return r, nil
}

// Load reads chains from a YAML file. An empty path resolves the file from
// the environment and well-known locations; when none exists the built-in
// chains are used.
func Load(path, override string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	if path == "" {
		return New(nil, override)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file %q: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse models file %q: %w", path, err)
	}

	chains := make(map[Tier][]string, len(cfg.Tiers))
	for name, models := range cfg.Tiers {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("models file %q: %w", path, err)
		}
		chains[tier] = models
	}
	r, err := New(chains, override)
	if err != nil {
		return nil, fmt.Errorf("models file %q: %w", path, err)
	}
	r.source = path
	return r, nil
}

// LoadFromEnv loads chains using LOANPILOT_MODELS_FILE and ANTHROPIC_MODEL.
func LoadFromEnv() (*Registry, error) {
	return Load("", os.Getenv(ModelOverrideEnv))
}

// Chain returns a copy of the tier's chain with the override, if any, in
// front. Unknown tiers resolve to the fast chain.
func (r *Registry) Chain(tier Tier) []string {
	base, ok := r.chains[tier]
	if !ok {
		base = r.chains[Fast]
	}
	chain := make([]string, 0, len(base)+1)
	if r.override != "" {
		chain = append(chain, r.override)
	}
	for _, model := range base {
		if model == r.override {
			continue
		}
		chain = append(chain, model)
	}
	return chain
}

// PreferredModel is the first model of the tier's chain.
func (r *Registry) PreferredModel(tier Tier) string {
	return r.Chain(tier)[0]
}

// Override returns the externally supplied override model, if any.
func (r *Registry) Override() string {
	return r.override
}

// Source describes where the chains came from.
func (r *Registry) Source() string {
	return r.source
}

func normalizeChain(models []string) []string {
	out := make([]string, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, model := range models {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}
		out = append(out, model)
	}
	return out
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv(ModelsFileEnv)); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"models.yaml",
		"config/models.yaml",
		"/etc/loanpilot/models.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "loanpilot", "models.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}
