package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderStatic {
		t.Errorf("expected default provider %q, got %q", ProviderStatic, cfg.Provider)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DataDir != ".investigate" {
		t.Errorf("expected default data_dir %q, got %q", ".investigate", cfg.DataDir)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.investigate.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o-mini"
	original.Port = 9090
	original.DataDir = "casefiles"
	original.Include = []string{"evidence/**/*.pdf", "**/*.xlsx"}

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify round-trip.
	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.DataDir != original.DataDir {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, original.DataDir)
	}
	if len(loaded.Include) != len(original.Include) {
		t.Errorf("include length: got %d, want %d", len(loaded.Include), len(original.Include))
	}
	for i, v := range loaded.Include {
		if v != original.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderStatic {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Override provider via env var.
	os.Setenv("INVESTIGATE_PROVIDER", "openai")
	defer os.Unsetenv("INVESTIGATE_PROVIDER")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}
}

func TestValidateEmptyModelForOpenAI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenAI
	cfg.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty model with openai provider")
	}
}

func TestValidateEmptyModelForStatic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("static provider does not need a model: %v", err)
	}
}

func TestValidateBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := DefaultConfig()
		cfg.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected validation error for port %d", port)
		}
	}
}

func TestValidateEmptyDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty data_dir")
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderOpenAI); got != "OPENAI_API_KEY" {
		t.Errorf("APIKeyEnvVar(openai) = %q", got)
	}
	if got := APIKeyEnvVar(ProviderStatic); got != "" {
		t.Errorf("APIKeyEnvVar(static) = %q, want empty", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"**/*.pdf", []string{"**/*.pdf"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
