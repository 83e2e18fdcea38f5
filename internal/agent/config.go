package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/matt/agentexec/internal/tools"
)

// Variant selects the backend CLI behavior.
type Variant string

const (
	// TextStream is a line-oriented text-streaming CLI; every stdout line is output text.
	TextStream Variant = "text"

	// JSONStream is a line-delimited JSON streaming CLI.
	JSONStream Variant = "json"
)

// ParseVariant parses a variant name. Backend preset names are accepted as aliases.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "text-stream", "claude", "claude-code":
		return TextStream, nil
	case "json", "json-stream", "stream-json", "gemini", "gemini-cli":
		return JSONStream, nil
	}
	return "", &ConfigurationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q (valid: text, json)", s)}
}

// Defaults applied when the corresponding InvocationConfig field is zero.
const (
	DefaultKillGrace  = 5 * time.Second
	DefaultStartGrace = 100 * time.Millisecond
)

// InvocationConfig describes one agent invocation. It is a plain value:
// build it once and do not mutate it after passing it to the runner.
type InvocationConfig struct {
	// Variant is the backend behavior (TextStream or JSONStream).
	Variant Variant

	// Executable overrides the backend's default binary ("claude", "gemini").
	Executable string

	// Model is passed via --model and is required.
	Model string

	// Tools is the permitted tool set in canonical names, or tools.All().
	// The zero value permits no tools.
	Tools tools.Set

	// Timeout is the wall-clock deadline (0 means no timeout, for interactive use).
	Timeout time.Duration

	// WorkingDir is the child's working directory ("" inherits ours).
	WorkingDir string

	// FirstOutputMarkers enables the FIRST OUTPUT marker in the audit log.
	FirstOutputMarkers bool

	// AuditLogPath is where raw lines and markers are appended ("" disables).
	AuditLogPath string

	// Input is written to the child's stdin, which is then closed.
	Input string

	// ExtraArgs are appended after the generated flags.
	ExtraArgs []string

	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string

	// Blocking selects the JSON variant's degraded whole-output mode.
	Blocking bool

	// KillGrace is the wait between SIGTERM and SIGKILL (default DefaultKillGrace).
	KillGrace time.Duration

	// StartGrace is the window in which an exit with no output counts as an
	// immediate exit (default DefaultStartGrace).
	StartGrace time.Duration

	// Context is passed through to hook validators.
	Context map[string]string
}

// Validate checks the config without side effects.
func (c InvocationConfig) Validate() error {
	switch c.Variant {
	case TextStream, JSONStream:
	default:
		return &ConfigurationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", c.Variant)}
	}
	if strings.TrimSpace(c.Model) == "" {
		return &ConfigurationError{Field: "model", Reason: "model is required"}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Reason: fmt.Sprintf("timeout must be positive, got %v", c.Timeout)}
	}
	if c.KillGrace < 0 {
		return &ConfigurationError{Field: "kill_grace", Reason: "kill grace must not be negative"}
	}
	if c.StartGrace < 0 {
		return &ConfigurationError{Field: "start_grace", Reason: "start grace must not be negative"}
	}
	if c.Blocking && c.Variant != JSONStream {
		return &ConfigurationError{Field: "blocking", Reason: "blocking mode is only available for the json variant"}
	}
	for _, arg := range append([]string{c.Model, c.Executable}, c.ExtraArgs...) {
		if strings.ContainsRune(arg, '\x00') {
			return &ConfigurationError{Field: "args", Reason: "arguments must not contain null bytes"}
		}
	}
	return nil
}

func (c InvocationConfig) killGrace() time.Duration {
	if c.KillGrace > 0 {
		return c.KillGrace
	}
	return DefaultKillGrace
}

func (c InvocationConfig) startGrace() time.Duration {
	if c.StartGrace > 0 {
		return c.StartGrace
	}
	return DefaultStartGrace
}
