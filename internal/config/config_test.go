package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathMissingFileReturnsDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"), nil)
	want := DefaultConfig()
	if cfg != want {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromPathParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[sandboxes]
enabled = true
default_region = "lhr"

[judge]
enabled = true
model = "claude-opus-4"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg := LoadFromPath(path, nil)
	if !cfg.Sandboxes.Enabled || cfg.Sandboxes.DefaultRegion != "lhr" {
		t.Fatalf("sandboxes not overridden: %+v", cfg.Sandboxes)
	}
	if cfg.Sandboxes.DefaultCPUs == 0 {
		t.Fatalf("expected unset fields to merge in defaults, got zero CPUs")
	}
	if !cfg.Judge.Enabled || cfg.Judge.Model != "claude-opus-4" {
		t.Fatalf("judge not overridden: %+v", cfg.Judge)
	}
	if cfg.Judge.APIKeyEnv == "" {
		t.Fatalf("expected default api_key_env to merge in, got empty")
	}
}

func TestLoadFromPathMalformedFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("not valid toml [[["), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg := LoadFromPath(path, nil)
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults on parse failure, got %+v", cfg)
	}
}

func TestValidateRejectsUnknownNetworkPreset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sandboxes.NetworkPreset = NetworkPreset("bogus")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown network preset")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
