package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matt/agentexec/internal/agent"
	"github.com/matt/agentexec/internal/tools"
)

// Backend constants
const (
	BackendClaudeCode = "claude-code"
	BackendGeminiCLI  = "gemini-cli"
)

// Config holds the application configuration.
type Config struct {
	// Backend specifies which agent CLI to drive ("claude-code" or "gemini-cli")
	Backend string `toml:"backend"`

	// Model is the default model (e.g., "sonnet" for claude-code, "gemini-2.5-pro" for gemini-cli)
	Model string `toml:"model"`

	// Tools is the permitted tool set in canonical names: "all", "none" or a comma separated list
	Tools tools.Set `toml:"tools"`

	// Timeout is the wall-clock limit in seconds. When set it must be
	// positive; leaving it out means no limit.
	Timeout int `toml:"timeout,omitempty"`

	// KillGrace is the number of seconds between SIGTERM and SIGKILL
	KillGrace int `toml:"kill_grace"`

	// WorkingDir is the directory the agent runs in; empty means the current directory
	WorkingDir string `toml:"working_dir"`

	// AuditLog is the path of the append-only audit log; empty disables it
	AuditLog string `toml:"audit_log"`

	// FirstOutputMarkers writes a FIRST OUTPUT marker to the audit log
	FirstOutputMarkers bool `toml:"first_output_markers"`

	// Blocking uses the non-streaming JSON output of gemini-cli
	Blocking bool `toml:"blocking"`

	// HooksFile is a YAML file declaring pre- and post-execution hooks
	HooksFile string `toml:"hooks_file"`

	// Command holds the agent command configuration
	Command CommandConfig `toml:"command"`
}

// CommandConfig holds the configuration for the agent command.
type CommandConfig struct {
	// Executable is the command to run (e.g., "claude" or "gemini")
	Executable string `toml:"executable"`

	// Args are appended after the generated flags; {model} and {prompt} are
	// replaced at runtime. When {prompt} is used the prompt is not sent on stdin.
	Args []string `toml:"args"`
}

// DefaultConfig returns the built-in default configuration (claude-code backend).
func DefaultConfig() *Config {
	return TextPreset()
}

// TextPreset returns the configuration preset for Claude Code's text output.
func TextPreset() *Config {
	return &Config{
		Backend:   BackendClaudeCode,
		Model:     "sonnet",
		Tools:     tools.All(),
		KillGrace: int(agent.DefaultKillGrace / time.Second),
		Command: CommandConfig{
			Executable: "claude",
		},
	}
}

// JSONPreset returns the configuration preset for Gemini CLI's stream-json output.
func JSONPreset() *Config {
	return &Config{
		Backend:   BackendGeminiCLI,
		Model:     "gemini-2.5-pro",
		Tools:     tools.All(),
		KillGrace: int(agent.DefaultKillGrace / time.Second),
		Command: CommandConfig{
			Executable: "gemini",
		},
	}
}

// SetBackend updates the config to use the specified backend preset.
// Settings that do not depend on the backend are preserved.
func (c *Config) SetBackend(backend string) error {
	variant, err := agent.ParseVariant(backend)
	if err != nil {
		return fmt.Errorf("unknown backend: %s (valid options: %s)", backend, strings.Join(ValidBackends(), ", "))
	}
	preset := TextPreset()
	if variant == agent.JSONStream {
		preset = JSONPreset()
	}

	c.Backend = preset.Backend
	c.Model = preset.Model
	c.Command = preset.Command
	if c.KillGrace == 0 {
		c.KillGrace = preset.KillGrace
	}
	return nil
}

// ValidBackends returns the list of valid backend names.
func ValidBackends() []string {
	return []string{BackendClaudeCode, BackendGeminiCLI}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "agentexec", "config.toml"), nil
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath() string {
	return ".agentexec.toml"
}

// Load reads and merges configuration from global and project config files.
// Priority (highest to lowest): project config > global config > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load global config
	globalPath, err := GlobalConfigPath()
	if err == nil {
		if _, err := os.Stat(globalPath); err == nil {
			if err := loadConfigFile(globalPath, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load project config (overrides global)
	projectPath := ProjectConfigPath()
	if _, err := os.Stat(projectPath); err == nil {
		if err := loadConfigFile(projectPath, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadFile reads a single config file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadConfigFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile reads a TOML config file and merges it into the given config.
func loadConfigFile(path string, cfg *Config) error {
	// Pointers detect which fields were actually set in the file
	type rawCommandConfig struct {
		Executable string   `toml:"executable"`
		Args       []string `toml:"args"`
	}
	type rawConfig struct {
		Backend            string           `toml:"backend"`
		Model              string           `toml:"model"`
		Tools              *tools.Set       `toml:"tools"`
		Timeout            *int             `toml:"timeout"`
		KillGrace          *int             `toml:"kill_grace"`
		WorkingDir         string           `toml:"working_dir"`
		AuditLog           string           `toml:"audit_log"`
		FirstOutputMarkers *bool            `toml:"first_output_markers"`
		Blocking           *bool            `toml:"blocking"`
		HooksFile          string           `toml:"hooks_file"`
		Command            rawCommandConfig `toml:"command"`
	}

	var fileCfg rawConfig
	md, err := toml.DecodeFile(path, &fileCfg)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	// If backend is specified, apply that preset first
	if fileCfg.Backend != "" {
		if err := cfg.SetBackend(fileCfg.Backend); err != nil {
			return err
		}
	}

	// Then merge set values (these override the preset)
	if fileCfg.Model != "" {
		cfg.Model = fileCfg.Model
	}
	if fileCfg.Tools != nil {
		cfg.Tools = *fileCfg.Tools
	}
	if fileCfg.Timeout != nil {
		if *fileCfg.Timeout <= 0 {
			return fmt.Errorf("%s: %w", path, &agent.ConfigurationError{Field: "timeout", Reason: "timeout must be positive (omit it for no limit)"})
		}
		cfg.Timeout = *fileCfg.Timeout
	}
	if fileCfg.KillGrace != nil {
		if *fileCfg.KillGrace < 0 {
			return fmt.Errorf("%s: kill_grace must not be negative", path)
		}
		cfg.KillGrace = *fileCfg.KillGrace
	}
	if fileCfg.WorkingDir != "" {
		cfg.WorkingDir = resolvePath(path, fileCfg.WorkingDir)
	}
	if fileCfg.AuditLog != "" {
		cfg.AuditLog = resolvePath(path, fileCfg.AuditLog)
	}
	if fileCfg.FirstOutputMarkers != nil {
		cfg.FirstOutputMarkers = *fileCfg.FirstOutputMarkers
	}
	if fileCfg.Blocking != nil {
		cfg.Blocking = *fileCfg.Blocking
	}
	if fileCfg.HooksFile != "" {
		cfg.HooksFile = resolvePath(path, fileCfg.HooksFile)
	}
	if fileCfg.Command.Executable != "" {
		cfg.Command.Executable = fileCfg.Command.Executable
	}
	if len(fileCfg.Command.Args) > 0 {
		cfg.Command.Args = fileCfg.Command.Args
	}

	return nil
}

// resolvePath makes p relative to the directory of the config file that
// named it. Absolute paths and "~/" paths are kept.
func resolvePath(configPath, p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

// ExpandArgs expands {model} and {prompt} placeholders in the command args.
func (c *CommandConfig) ExpandArgs(model, prompt string) []string {
	result := make([]string, len(c.Args))
	for i, arg := range c.Args {
		expanded := arg
		expanded = strings.ReplaceAll(expanded, "{model}", model)
		expanded = strings.ReplaceAll(expanded, "{prompt}", prompt)
		result[i] = expanded
	}
	return result
}

// UsesPromptArg reports whether the args carry the prompt themselves.
func (c *CommandConfig) UsesPromptArg() bool {
	for _, arg := range c.Args {
		if strings.Contains(arg, "{prompt}") {
			return true
		}
	}
	return false
}

// ToInvocation converts the config into an invocation of prompt.
func (c *Config) ToInvocation(prompt string) (agent.InvocationConfig, error) {
	variant, err := agent.ParseVariant(c.Backend)
	if err != nil {
		return agent.InvocationConfig{}, err
	}
	inv := agent.InvocationConfig{
		Variant:            variant,
		Executable:         c.Command.Executable,
		Model:              c.Model,
		Tools:              c.Tools,
		Timeout:            time.Duration(c.Timeout) * time.Second,
		KillGrace:          time.Duration(c.KillGrace) * time.Second,
		WorkingDir:         c.WorkingDir,
		AuditLogPath:       c.AuditLog,
		FirstOutputMarkers: c.FirstOutputMarkers,
		Blocking:           c.Blocking,
		ExtraArgs:          c.Command.ExpandArgs(c.Model, prompt),
	}
	if !c.Command.UsesPromptArg() {
		inv.Input = prompt
	}
	return inv, nil
}

// ToTOML returns the config as a TOML document.
func (c *Config) ToTOML() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("# agentexec configuration\n")
	buf.WriteString("# backend: " + strings.Join(ValidBackends(), " | ") + "\n")
	buf.WriteString("# tools: \"all\", \"none\" or a comma separated list of canonical tool names\n")
	buf.WriteString("# timeout: seconds, must be positive; omit it for no limit\n")
	buf.WriteString("# kill_grace: seconds between SIGTERM and SIGKILL\n\n")

	enc := toml.NewEncoder(&buf)
	enc.Indent = "  "
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}
