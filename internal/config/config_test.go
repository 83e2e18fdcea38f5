package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matt/agentexec/internal/agent"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != BackendClaudeCode {
		t.Errorf("expected default backend %q, got %q", BackendClaudeCode, cfg.Backend)
	}

	if cfg.Model != "sonnet" {
		t.Errorf("expected default model 'sonnet', got '%s'", cfg.Model)
	}

	if cfg.Command.Executable != "claude" {
		t.Errorf("expected default executable 'claude', got '%s'", cfg.Command.Executable)
	}

	if !cfg.Tools.IsAll() {
		t.Errorf("expected all tools by default, got %s", cfg.Tools)
	}

	if cfg.Timeout != 0 {
		t.Errorf("expected no timeout by default, got %d", cfg.Timeout)
	}
}

func TestExpandArgs(t *testing.T) {
	cmd := CommandConfig{
		Args: []string{
			"--fallback-model", "{model}",
			"-p", "{prompt}",
			"--other", "value",
		},
	}

	expanded := cmd.ExpandArgs("haiku", "Hello world")

	expected := []string{
		"--fallback-model", "haiku",
		"-p", "Hello world",
		"--other", "value",
	}

	if len(expanded) != len(expected) {
		t.Fatalf("expected %d args, got %d", len(expected), len(expanded))
	}

	for i, arg := range expanded {
		if arg != expected[i] {
			t.Errorf("arg[%d]: expected '%s', got '%s'", i, expected[i], arg)
		}
	}

	if !cmd.UsesPromptArg() {
		t.Error("expected UsesPromptArg to detect {prompt}")
	}
}

func TestSetBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 120

	if err := cfg.SetBackend("gemini"); err != nil {
		t.Fatalf("SetBackend failed: %v", err)
	}
	if cfg.Backend != BackendGeminiCLI {
		t.Errorf("expected backend %q, got %q", BackendGeminiCLI, cfg.Backend)
	}
	if cfg.Command.Executable != "gemini" {
		t.Errorf("expected executable 'gemini', got '%s'", cfg.Command.Executable)
	}
	if cfg.Timeout != 120 {
		t.Errorf("expected timeout to be preserved, got %d", cfg.Timeout)
	}

	if err := cfg.SetBackend("cursor"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
backend = "gemini-cli"
model = "gemini-2.5-flash"
tools = "Read,Grep"
timeout = 300
kill_grace = 2
audit_log = "logs/agent.log"
first_output_markers = true
hooks_file = "/etc/agentexec/hooks.yaml"

[command]
executable = "/opt/gemini/bin/gemini"
args = ["--yolo"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := loadConfigFile(path, cfg); err != nil {
		t.Fatalf("loadConfigFile failed: %v", err)
	}

	if cfg.Backend != BackendGeminiCLI {
		t.Errorf("expected backend gemini-cli, got %q", cfg.Backend)
	}
	if cfg.Model != "gemini-2.5-flash" {
		t.Errorf("expected model gemini-2.5-flash, got %q", cfg.Model)
	}
	if got := cfg.Tools.Names(); len(got) != 2 || got[0] != "Read" || got[1] != "Grep" {
		t.Errorf("expected tools [Read Grep], got %v", got)
	}
	if cfg.Timeout != 300 {
		t.Errorf("expected timeout 300, got %d", cfg.Timeout)
	}
	if cfg.KillGrace != 2 {
		t.Errorf("expected kill_grace 2, got %d", cfg.KillGrace)
	}
	if want := filepath.Join(dir, "logs", "agent.log"); cfg.AuditLog != want {
		t.Errorf("expected audit log %q, got %q", want, cfg.AuditLog)
	}
	if !cfg.FirstOutputMarkers {
		t.Error("expected first_output_markers to be true")
	}
	if cfg.HooksFile != "/etc/agentexec/hooks.yaml" {
		t.Errorf("expected absolute hooks file kept, got %q", cfg.HooksFile)
	}
	if cfg.Command.Executable != "/opt/gemini/bin/gemini" {
		t.Errorf("expected custom executable, got %q", cfg.Command.Executable)
	}
	if len(cfg.Command.Args) != 1 || cfg.Command.Args[0] != "--yolo" {
		t.Errorf("expected args [--yolo], got %v", cfg.Command.Args)
	}
}

func TestLoadConfigFileMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
model = "opus"
tools = "none"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := loadConfigFile(path, cfg); err != nil {
		t.Fatalf("loadConfigFile failed: %v", err)
	}

	if cfg.Model != "opus" {
		t.Errorf("expected model 'opus', got '%s'", cfg.Model)
	}
	if cfg.Tools.IsAll() || cfg.Tools.Len() != 0 {
		t.Errorf("expected empty tool set, got %s", cfg.Tools)
	}

	// Executable should remain default
	if cfg.Command.Executable != "claude" {
		t.Errorf("expected executable to remain 'claude', got '%s'", cfg.Command.Executable)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "iterations = 20\n", "unknown keys"},
		{"unknown backend", "backend = \"cursor\"\n", "unknown backend"},
		{"negative timeout", "timeout = -1\n", "timeout must be positive"},
		{"zero timeout", "timeout = 0\n", "timeout must be positive"},
		{"negative grace", "kill_grace = -5\n", "kill_grace must not be negative"},
		{"bad syntax", "model = \n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			err := loadConfigFile(path, DefaultConfig())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfigFileZeroTimeoutIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("timeout = 0\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	err := loadConfigFile(path, DefaultConfig())
	var cfgErr *agent.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "timeout" {
		t.Errorf("expected field 'timeout', got %q", cfgErr.Field)
	}
}

func TestLoadWithProjectOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// Create temp dir and change to it
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	defer os.Chdir(originalDir)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change to temp directory: %v", err)
	}

	// Write project config
	projectConfig := `
model = "project-model"
timeout = 100
`
	if err := os.WriteFile(".agentexec.toml", []byte(projectConfig), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model != "project-model" {
		t.Errorf("expected project model 'project-model', got '%s'", cfg.Model)
	}

	if cfg.Timeout != 100 {
		t.Errorf("expected project timeout 100, got %d", cfg.Timeout)
	}

	// Command should remain default (not specified in project config)
	if cfg.Command.Executable != "claude" {
		t.Errorf("expected default executable 'claude', got '%s'", cfg.Command.Executable)
	}
}

func TestToInvocation(t *testing.T) {
	cfg := JSONPreset()
	cfg.Timeout = 30
	cfg.KillGrace = 1
	cfg.Blocking = true

	inv, err := cfg.ToInvocation("fix the bug")
	if err != nil {
		t.Fatalf("ToInvocation failed: %v", err)
	}

	if inv.Variant != agent.JSONStream {
		t.Errorf("expected json variant, got %q", inv.Variant)
	}
	if inv.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", inv.Timeout)
	}
	if inv.KillGrace != time.Second {
		t.Errorf("expected 1s kill grace, got %v", inv.KillGrace)
	}
	if inv.Input != "fix the bug" {
		t.Errorf("expected prompt on stdin, got %q", inv.Input)
	}
	if !inv.Blocking {
		t.Error("expected blocking mode")
	}
	if err := inv.Validate(); err != nil {
		t.Errorf("expected valid invocation, got %v", err)
	}
}

func TestToInvocationPromptArg(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Command.Args = []string{"--append", "{prompt}"}

	inv, err := cfg.ToInvocation("hello")
	if err != nil {
		t.Fatalf("ToInvocation failed: %v", err)
	}
	if inv.Input != "" {
		t.Errorf("expected no stdin payload, got %q", inv.Input)
	}
	if len(inv.ExtraArgs) != 2 || inv.ExtraArgs[1] != "hello" {
		t.Errorf("expected prompt in args, got %v", inv.ExtraArgs)
	}
}

func TestToTOMLRoundTrip(t *testing.T) {
	cfg := JSONPreset()
	cfg.Timeout = 45
	cfg.FirstOutputMarkers = true
	cfg.Command.Args = []string{"--yolo"}

	out, err := cfg.ToTOML()
	if err != nil {
		t.Fatalf("ToTOML failed: %v", err)
	}

	for _, want := range []string{
		`backend = "gemini-cli"`,
		`model = "gemini-2.5-pro"`,
		`tools = "all"`,
		`timeout = 45`,
		"[command]",
		`executable = "gemini"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("TOML output missing %q:\n%s", want, out)
		}
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Backend != cfg.Backend || loaded.Timeout != 45 || !loaded.FirstOutputMarkers || !loaded.Tools.IsAll() {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestToTOMLOmitsUnsetTimeout(t *testing.T) {
	out, err := DefaultConfig().ToTOML()
	if err != nil {
		t.Fatalf("ToTOML failed: %v", err)
	}
	if strings.Contains(out, "\ntimeout =") {
		t.Errorf("expected no timeout key for an unlimited config:\n%s", out)
	}

	// The written default must load back cleanly
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.Timeout != 0 {
		t.Errorf("expected no timeout, got %d", loaded.Timeout)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	path, err := GlobalConfigPath()
	if err != nil {
		t.Fatalf("GlobalConfigPath failed: %v", err)
	}

	// Should end with config.toml
	if filepath.Base(path) != "config.toml" {
		t.Errorf("expected path to end with config.toml, got '%s'", path)
	}

	// Should contain 'agentexec' directory
	if filepath.Base(filepath.Dir(path)) != "agentexec" {
		t.Errorf("expected path to contain agentexec directory, got '%s'", path)
	}
}

func TestProjectConfigPath(t *testing.T) {
	path := ProjectConfigPath()
	if path != ".agentexec.toml" {
		t.Errorf("expected '.agentexec.toml', got '%s'", path)
	}
}
