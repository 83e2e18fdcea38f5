package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/matt/agentexec/internal/tools"
)

// Backend is the per-variant strategy: it contributes the command-line
// flags and decodes stdout lines. Everything else is shared.
type Backend interface {
	Variant() Variant
	// Provider names the CLI family, reported on ExecutionResult.
	Provider() string
	DefaultExecutable() string
	Dialect() tools.Dialect
	// ToolSeparator joins translated tool names into one flag value.
	ToolSeparator() string
	// Args returns the flags for cfg. toolNames is nil for "all tools" and
	// non-nil (possibly empty) for an explicit list.
	Args(cfg InvocationConfig, toolNames []string) []string
	// Decode classifies one complete stdout line. ok is false for lines
	// that carry no event (blank lines, prompt echoes).
	Decode(line string) (ev Event, ok bool)
}

// finalDecoder is implemented by backends with a whole-output mode.
type finalDecoder interface {
	DecodeFinal(stdout []byte) ([]Event, error)
}

// BackendFor returns the strategy for a variant.
func BackendFor(v Variant) (Backend, error) {
	switch v {
	case TextStream:
		return textBackend{}, nil
	case JSONStream:
		return jsonBackend{}, nil
	}
	return nil, &ConfigurationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", v)}
}

// textBackend drives a CLI in plain print mode (Claude Code style).
type textBackend struct{}

func (textBackend) Variant() Variant { return TextStream }
func (textBackend) Provider() string { return "claude-code" }
func (textBackend) DefaultExecutable() string { return "claude" }
func (textBackend) Dialect() tools.Dialect { return tools.DialectText }
func (textBackend) ToolSeparator() string { return "," }

func (b textBackend) Args(cfg InvocationConfig, toolNames []string) []string {
	args := []string{"--print", "--output-format", "text", "--model", cfg.Model}
	if toolNames != nil {
		// An empty value disables every tool; omitting the flag would allow all.
		args = append(args, "--tools", strings.Join(toolNames, b.ToolSeparator()))
	}
	return args
}

// Decode never fails: any text is valid output.
func (textBackend) Decode(line string) (Event, bool) {
	return Event{Kind: EventText, Text: line, Raw: line}, true
}

// jsonBackend drives a CLI emitting line-delimited JSON (Gemini CLI style).
type jsonBackend struct{}

func (jsonBackend) Variant() Variant { return JSONStream }
func (jsonBackend) Provider() string { return "gemini-cli" }
func (jsonBackend) DefaultExecutable() string { return "gemini" }
func (jsonBackend) Dialect() tools.Dialect { return tools.DialectJSON }
func (jsonBackend) ToolSeparator() string { return "," }

func (b jsonBackend) Args(cfg InvocationConfig, toolNames []string) []string {
	format := "stream-json"
	if cfg.Blocking {
		format = "json"
	}
	args := []string{"--output-format", format, "--model", cfg.Model}
	if toolNames != nil {
		args = append(args, "--allowed-tools", strings.Join(toolNames, b.ToolSeparator()))
	}
	return args
}

// wireMessage is the union of every stream-json message shape.
type wireMessage struct {
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	Delta      bool            `json:"delta"`
	Name       string          `json:"name"`
	ToolName   string          `json:"tool_name"`
	Input      map[string]any  `json:"input"`
	Parameters map[string]any  `json:"parameters"`
	ID         string          `json:"id"`
	ToolID     string          `json:"tool_id"`
	ToolUseID  string          `json:"tool_use_id"`
	Output     json.RawMessage `json:"output"`
	Status     string          `json:"status"`
	Stats      map[string]any  `json:"stats"`
	SessionID  string          `json:"session_id"`
	Model      string          `json:"model"`
	Message    string          `json:"message"`
	Error      json.RawMessage `json:"error"`
}

var errMissingType = errors.New("message has no type")

func (jsonBackend) Decode(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	var msg wireMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return Event{Kind: EventMalformed, Raw: line, Err: err}, true
	}
	if msg.Type == "" {
		return Event{Kind: EventMalformed, Raw: line, Err: errMissingType}, true
	}

	switch msg.Type {
	case "message":
		if msg.Role != "assistant" || msg.Content == nil {
			return Event{}, false
		}
		return Event{Kind: EventText, Text: rawText(msg.Content), Delta: msg.Delta, Raw: line}, true

	case "tool_use":
		name := firstNonEmpty(msg.Name, msg.ToolName)
		canonical, _ := tools.Canonical(tools.DialectJSON, name)
		input := msg.Input
		if input == nil {
			input = msg.Parameters
		}
		return Event{
			Kind:      EventToolUse,
			ToolName:  canonical,
			ToolInput: input,
			ToolUseID: firstNonEmpty(msg.ID, msg.ToolID),
			Raw:       line,
		}, true

	case "tool_result":
		content := rawText(msg.Content)
		if content == "" {
			content = rawText(msg.Output)
		}
		return Event{
			Kind:      EventToolResult,
			ToolUseID: firstNonEmpty(msg.ToolUseID, msg.ToolID),
			Content:   content,
			Status:    msg.Status,
			Raw:       line,
		}, true

	case "result":
		return Event{
			Kind:   EventResult,
			Status: msg.Status,
			Stats:  msg.Stats,
			Text:   errorText(msg.Error),
			Raw:    line,
		}, true

	case "init":
		return Event{Kind: EventInit, SessionID: msg.SessionID, Model: msg.Model, Raw: line}, true

	case "error":
		text := msg.Message
		if text == "" {
			text = errorText(msg.Error)
		}
		return Event{Kind: EventError, Text: text, Raw: line}, true
	}

	return Event{Kind: EventUnknown, Type: msg.Type, Raw: line}, true
}

// DecodeFinal decodes the single JSON document of blocking mode.
func (jsonBackend) DecodeFinal(stdout []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, &MalformedStreamChunkError{Raw: "", Cause: errors.New("empty output")}
	}
	var doc struct {
		Response  string          `json:"response"`
		Stats     map[string]any  `json:"stats"`
		SessionID string          `json:"session_id"`
		Error     json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &MalformedStreamChunkError{Raw: string(trimmed), Cause: err}
	}

	var events []Event
	if doc.SessionID != "" {
		events = append(events, Event{Kind: EventInit, SessionID: doc.SessionID})
	}
	if doc.Response != "" {
		events = append(events, Event{Kind: EventText, Text: doc.Response})
	}
	status := "success"
	errMsg := errorText(doc.Error)
	if errMsg != "" {
		status = "error"
	}
	events = append(events, Event{Kind: EventResult, Status: status, Stats: doc.Stats, Text: errMsg, Raw: string(trimmed)})
	return events, nil
}

// rawText returns a JSON string's value, "" for null/absent, and the compact
// JSON text for anything else.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

// errorText extracts a message from an error field that may be a string or
// an object with a "message" key.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return rawText(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
