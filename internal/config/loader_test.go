package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()
	data, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.LLM.Model != def.LLM.Model {
		t.Errorf("expected default model %q, got %q", def.LLM.Model, cfg.LLM.Model)
	}
	if cfg.Agents.MaxToolIter != def.Agents.MaxToolIter {
		t.Errorf("expected default maxToolIterations %d, got %d", def.Agents.MaxToolIter, cfg.Agents.MaxToolIter)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"llm": map[string]any{
			"provider": "openai",
			"model":    "gpt-4o",
		},
		"agents": map[string]any{
			"maxToolIterations": 5,
		},
		"tools": map[string]any{
			"work": map[string]any{
				"command": "/usr/local/bin/worktools",
				"args":    []string{"--ledger", "/tmp/ledger.csv"},
			},
		},
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider %q, got %q", "openai", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected model %q, got %q", "gpt-4o", cfg.LLM.Model)
	}
	if cfg.Agents.MaxToolIter != 5 {
		t.Errorf("expected maxToolIterations 5, got %d", cfg.Agents.MaxToolIter)
	}
	if cfg.Tools.Work.Command != "/usr/local/bin/worktools" {
		t.Errorf("unexpected work command: %q", cfg.Tools.Work.Command)
	}
	// Untouched sections keep their defaults.
	if cfg.Tools.InvokeTimeoutSeconds != 30 {
		t.Errorf("expected default invoke timeout 30, got %d", cfg.Tools.InvokeTimeoutSeconds)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{not: [valid"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for invalid YAML (falls back to default), got: %v", err)
	}
	def := DefaultConfig()
	if cfg.LLM.Model != def.LLM.Model {
		t.Errorf("expected default model %q, got %q", def.LLM.Model, cfg.LLM.Model)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "gemini-2.5-pro"
	cfg.Sync.Enabled = true

	if err := Save(&cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("expected model to round-trip, got %q", loaded.LLM.Model)
	}
	if !loaded.Sync.Enabled {
		t.Error("expected sync.enabled to round-trip")
	}
}
