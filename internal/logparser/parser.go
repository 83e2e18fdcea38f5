package logparser

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/matt/agentexec/internal/agent"
)

// Parser pretty-prints decoded agent events for a terminal.
// It never fails: rendering problems only affect what is shown.
type Parser struct {
	out        io.Writer
	openRun    *openRun
	lastHeader string
}

type openRun struct {
	kind   string // "assistant", "delta"
	lastCh string
}

// NewParser creates a new event renderer that writes to the given output.
func NewParser(out io.Writer) *Parser {
	return &Parser{
		out: out,
	}
}

// ProcessEvent renders a single event.
func (p *Parser) ProcessEvent(ev agent.Event) {
	defer func() {
		// A bad payload must not take down the run being watched
		if r := recover(); r != nil {
			p.flushRun()
			p.safeWrite(ev.Raw + "\n\n")
		}
	}()

	switch ev.Kind {
	case agent.EventText:
		if ev.Delta {
			// Merge streamed fragments into one paragraph
			p.startOrAppendRun("delta", "[assistant]", p.sanitizeSingleLine(ev.Text))
			return
		}
		p.flushRun()
		p.maybePrintHeader("[assistant]")
		p.safeWrite(ev.Text + "\n")
		return
	case agent.EventUnknown:
		// Forward-compatible noise stays out of the operator view
		return
	}

	p.flushRun()
	p.maybePrintHeader(p.fmtHeader(ev))
	p.safeWrite(p.bodyFor(ev) + "\n\n")
}

// Flush ensures any buffered content is written.
func (p *Parser) Flush() {
	p.flushRun()
}

func (p *Parser) safeWrite(s string) {
	// Never let write errors propagate
	_, _ = p.out.Write([]byte(s))
}

func (p *Parser) flushRun() {
	if p.openRun == nil {
		return
	}
	p.safeWrite("\n\n")
	p.openRun = nil
}

func (p *Parser) maybePrintHeader(header string) {
	if header == "" {
		return
	}
	if header == p.lastHeader {
		return
	}
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprint(p.out, header+"\n")
	p.lastHeader = header
}

func (p *Parser) startOrAppendRun(kind, header, fragment string) {
	if fragment == "" {
		return
	}

	if p.openRun == nil || p.openRun.kind != kind {
		p.flushRun()
		p.maybePrintHeader(header)
		p.openRun = &openRun{kind: kind}
	}

	p.safeWrite(fragment)
	p.openRun.lastCh = string(fragment[len(fragment)-1])
}

func (p *Parser) fmtHeader(ev agent.Event) string {
	switch ev.Kind {
	case agent.EventToolUse:
		return "[tool_use]"
	case agent.EventToolResult:
		return "[tool_result]"
	case agent.EventResult:
		return "[result]"
	case agent.EventInit:
		return "[init]"
	case agent.EventError:
		return "[error]"
	case agent.EventMalformed:
		return "[malformed]"
	}
	return ""
}

func (p *Parser) bodyFor(ev agent.Event) string {
	switch ev.Kind {
	case agent.EventInit:
		var bits []string
		if ev.Model != "" {
			bits = append(bits, fmt.Sprintf("model=%s", ev.Model))
		}
		if ev.SessionID != "" {
			bits = append(bits, fmt.Sprintf("session=%s", ev.SessionID))
		}
		if len(bits) > 0 {
			return fmt.Sprintf("Session init (%s)", strings.Join(bits, ", "))
		}
		return "Session init"

	case agent.EventToolUse:
		return SummarizeToolUse(ev.ToolName, ev.ToolInput)

	case agent.EventToolResult:
		content := ev.Content
		if content == "" {
			content = "(empty)"
		}
		msg := p.asSingleLine(content)
		if len(msg) > 200 {
			msg = msg[:197] + "..."
		}
		if ev.Status != "" && ev.Status != "success" {
			return fmt.Sprintf("Result (%s): %s", ev.Status, msg)
		}
		return fmt.Sprintf("Result: %s", msg)

	case agent.EventResult:
		var bits []string
		if ev.Status != "" {
			bits = append(bits, ev.Status)
		}
		bits = append(bits, formatStats(ev.Stats)...)
		msg := p.asSingleLine(ev.Text)
		if msg == "" {
			msg = "done"
		}
		if len(bits) > 0 {
			return fmt.Sprintf("Result (%s): %s", strings.Join(bits, ", "), msg)
		}
		return fmt.Sprintf("Result: %s", msg)

	case agent.EventError:
		return color.RedString(p.asSingleLine(ev.Text))

	case agent.EventMalformed:
		return color.RedString(p.asSingleLine(ev.Raw))
	}

	if ev.Type != "" {
		return fmt.Sprintf("%s event", ev.Type)
	}
	return "(unknown event)"
}

// formatStats renders numeric token and timing stats as key=value pairs.
func formatStats(stats map[string]any) []string {
	keys := make([]string, 0, len(stats))
	for k, v := range stats {
		switch v.(type) {
		case float64, int, int64:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%v", k, stats[k]))
	}
	return out
}

// SummarizeToolUse creates a human-readable summary for a tool call given
// its canonical name.
func SummarizeToolUse(name string, input map[string]any) string {
	if name == "" {
		return "Tool call"
	}

	switch name {
	case "Bash":
		if cmd := getStringArg(input, "command"); cmd != "" {
			return fmt.Sprintf("Shell: %s", asSingleLine(cmd))
		}
		return "Shell"
	case "Read":
		if path := getStringArg(input, "file_path", "absolute_path", "path"); path != "" {
			return fmt.Sprintf("Read file: %s", asSingleLine(path))
		}
		return "Read file"
	case "ReadMany":
		return "Read files"
	case "Write":
		if path := getStringArg(input, "file_path", "path"); path != "" {
			return fmt.Sprintf("Write file: %s", asSingleLine(path))
		}
		return "Write file"
	case "Edit":
		if path := getStringArg(input, "file_path", "path"); path != "" {
			return fmt.Sprintf("Edit file: %s", asSingleLine(path))
		}
		return "Edit file"
	case "LS":
		if path := getStringArg(input, "path", "dir_path"); path != "" {
			return fmt.Sprintf("List dir: %s", asSingleLine(path))
		}
		return "List dir"
	case "Glob":
		if pattern := getStringArg(input, "pattern"); pattern != "" {
			return fmt.Sprintf("Glob: %s", asSingleLine(pattern))
		}
		return "Glob"
	case "Grep":
		if pattern := getStringArg(input, "pattern"); pattern != "" {
			return fmt.Sprintf("Grep: %s", asSingleLine(pattern))
		}
		return "Grep"
	case "WebFetch":
		if url := getStringArg(input, "url", "prompt"); url != "" {
			return fmt.Sprintf("Fetch: %s", asSingleLine(url))
		}
		return "Web fetch"
	case "WebSearch":
		if query := getStringArg(input, "query"); query != "" {
			return fmt.Sprintf("Search: %s", asSingleLine(query))
		}
		return "Web search"
	case "TodoWrite":
		return "Update todos"
	case "Memory":
		return "Save memory"
	}

	return name
}

func getStringArg(args map[string]any, keys ...string) string {
	if args == nil {
		return ""
	}
	for _, key := range keys {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

var (
	newlineRe    = regexp.MustCompile(`\r?\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func asSingleLine(s string) string {
	s = newlineRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func (p *Parser) asSingleLine(s string) string {
	return asSingleLine(s)
}

func (p *Parser) sanitizeSingleLine(s string) string {
	// Keep it single-line but don't trim/collapse spaces
	return newlineRe.ReplaceAllString(s, " ")
}
