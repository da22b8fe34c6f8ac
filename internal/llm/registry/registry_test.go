package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultChainsNonEmptyAndOrdered(t *testing.T) {
	r := Default()
	for _, tier := range Tiers() {
		chain := r.Chain(tier)
		if len(chain) == 0 {
			t.Fatalf("tier %s has empty chain", tier)
		}
		if !reflect.DeepEqual(chain, defaultChains[tier]) {
			t.Fatalf("tier %s chain = %v, want %v", tier, chain, defaultChains[tier])
		}
		if r.PreferredModel(tier) != chain[0] {
			t.Fatalf("PreferredModel(%s) = %q, want %q", tier, r.PreferredModel(tier), chain[0])
		}
	}
}

func TestChainReturnsCopy(t *testing.T) {
	r := Default()
	chain := r.Chain(Fast)
	chain[0] = "mutated"
	if r.Chain(Fast)[0] == "mutated" {
		t.Fatal("Chain() exposed internal slice")
	}
}

func TestOverrideIsPrepended(t *testing.T) {
	r, err := New(nil, " claude-custom ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chain := r.Chain(Balanced)
	want := append([]string{"claude-custom"}, defaultChains[Balanced]...)
	if !reflect.DeepEqual(chain, want) {
		t.Fatalf("Chain(balanced) = %v, want %v", chain, want)
	}
	if r.Override() != "claude-custom" {
		t.Fatalf("Override() = %q", r.Override())
	}
}

func TestOverrideAlreadyInChainMovesToFront(t *testing.T) {
	r, err := New(nil, "claude-3-5-haiku-latest")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []string{"claude-3-5-haiku-latest", "claude-haiku-4-5", "claude-3-haiku-20240307"}
	if got := r.Chain(Fast); !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain(fast) = %v, want %v", got, want)
	}
}

func TestUnknownTierFallsBackToFast(t *testing.T) {
	r := Default()
	if got := r.Chain(Tier("turbo")); !reflect.DeepEqual(got, defaultChains[Fast]) {
		t.Fatalf("Chain(turbo) = %v, want fast chain", got)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{in: "fast", want: Fast},
		{in: " Balanced ", want: Balanced},
		{in: "POWERFUL", want: Powerful},
		{in: "turbo", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseTier(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewRejectsEmptyTier(t *testing.T) {
	if _, err := New(map[Tier][]string{Fast: {" ", ""}}, ""); err == nil {
		t.Fatal("expected empty tier to be rejected")
	}
	if _, err := New(map[Tier][]string{Tier("turbo"): {"m"}}, ""); err == nil {
		t.Fatal("expected unknown tier to be rejected")
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "models.yaml")
	cfg := `tiers:
  fast:
    - model-a
    - model-b
    - model-a
    - model-c
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ModelsFileEnv, cfgPath)
	t.Setenv(ModelOverrideEnv, "")

	r, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if got, want := r.Chain(Fast), []string{"model-a", "model-b", "model-c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Chain(fast) = %v, want %v", got, want)
	}
	if got := r.Chain(Powerful); !reflect.DeepEqual(got, defaultChains[Powerful]) {
		t.Fatalf("Chain(powerful) = %v, want built-in chain", got)
	}
	if r.Source() != cfgPath {
		t.Fatalf("Source() = %q, want %q", r.Source(), cfgPath)
	}
}

func TestLoadRejectsUnknownTierInFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(cfgPath, []byte("tiers:\n  turbo: [m]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath, ""); err == nil {
		t.Fatal("expected unknown tier in file to fail")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv(ModelsFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected missing explicit file to fail")
	}
}
