package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Default Config Tests
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "localhost")
	}

	if cfg.Qdrant.Host != "localhost" {
		t.Errorf("Qdrant.Host = %q, want %q", cfg.Qdrant.Host, "localhost")
	}
	if cfg.Qdrant.Port != 6334 {
		t.Errorf("Qdrant.Port = %d, want 6334", cfg.Qdrant.Port)
	}

	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("Ollama.URL = %q, want %q", cfg.Ollama.URL, "http://localhost:11434")
	}

	if !cfg.Features.EnableSync {
		t.Error("Features.EnableSync should default to true")
	}
	if !cfg.Features.EnableAutomations {
		t.Error("Features.EnableAutomations should default to true")
	}
}

func TestDefault_Paths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/omni-test"

	if got := cfg.DatabasePath(); got != filepath.Join("/tmp/omni-test", "omni.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := cfg.SnapshotPath(); got != filepath.Join("/tmp/omni-test", "snapshot.json") {
		t.Errorf("SnapshotPath() = %q", got)
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want default 8090", cfg.Server.Port)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	want := Default()
	want.Server.Port = 9999
	want.LogLevel = "debug"
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid JSON")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OMNI_PORT", "7070")
	t.Setenv("OMNI_GATEWAY_URL", "http://gateway.example:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Gateway.URL != "http://gateway.example:9000" {
		t.Errorf("Gateway.URL = %q, want env override", cfg.Gateway.URL)
	}
}

// =============================================================================
// Save Tests
// =============================================================================

func TestSave_StripsTokens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.DataDir = dir
	cfg.Gateway.APIKey = "secret-gateway"
	cfg.Services.TodoistToken = "secret-todoist"
	cfg.Services.SlackToken = "secret-slack"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	var saved Config
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if saved.Services.TodoistToken != "" || saved.Services.SlackToken != "" {
		t.Error("Save() must not persist service tokens")
	}
	if saved.Gateway.APIKey != "" {
		t.Error("Save() must not persist the gateway key")
	}

	// In-memory config keeps its tokens.
	if cfg.Services.TodoistToken != "secret-todoist" {
		t.Error("Save() must not mutate the live config")
	}
}

func TestSave_FileMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}
