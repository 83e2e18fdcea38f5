package logparser

import (
	"bufio"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Outcome is how one audited run ended.
type Outcome string

const (
	OutcomeRunning   Outcome = "running"
	OutcomeCompleted Outcome = "completed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeKilled    Outcome = "killed"
)

// AuditRun summarizes one process recorded in an audit log.
type AuditRun struct {
	PID         int            `json:"pid"`
	Outcome     Outcome        `json:"outcome"`
	ExitCode    int            `json:"exit_code"`
	Duration    time.Duration  `json:"duration_ns"`
	FirstOutput *time.Duration `json:"first_output_ns,omitempty"`
	Timeout     time.Duration  `json:"timeout_ns,omitempty"`

	StdoutLines int `json:"stdout_lines"`
	StderrLines int `json:"stderr_lines"`
	ToolUses    int `json:"tool_uses"`

	// Token usage from stream-json result stats, when the agent reports it.
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

var (
	startedRe   = regexp.MustCompile(`^=== PROCESS STARTED \(PID: (\d+)\) ===$`)
	firstRe     = regexp.MustCompile(`^=== FIRST OUTPUT: ([\d.]+)s ===$`)
	completedRe = regexp.MustCompile(`^=== PROCESS COMPLETED \(exit code: (-?\d+), duration: ([\d.]+)s\) ===$`)
	timeoutRe   = regexp.MustCompile(`^=== TIMEOUT EXCEEDED \(([\d.]+)s, actual: ([\d.]+)s\) ===$`)
	killedRe    = regexp.MustCompile(`^=== PROCESS KILLED \(duration: ([\d.]+)s\) ===$`)
)

// ScanAuditLog reads an audit log and returns one entry per process run,
// in the order they were appended. Lines before the first start marker are
// ignored. It never fails on content; only read errors are returned.
func ScanAuditLog(reader io.Reader) ([]AuditRun, error) {
	var (
		runs []AuditRun
		cur  *AuditRun
	)

	scanner := newLineScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		if m := startedRe.FindStringSubmatch(line); m != nil {
			pid, _ := strconv.Atoi(m[1])
			runs = append(runs, AuditRun{PID: pid, Outcome: OutcomeRunning, ExitCode: -1})
			cur = &runs[len(runs)-1]
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case firstRe.MatchString(line):
			d := parseSeconds(firstRe.FindStringSubmatch(line)[1])
			cur.FirstOutput = &d
		case completedRe.MatchString(line):
			m := completedRe.FindStringSubmatch(line)
			cur.Outcome = OutcomeCompleted
			cur.ExitCode, _ = strconv.Atoi(m[1])
			cur.Duration = parseSeconds(m[2])
		case timeoutRe.MatchString(line):
			m := timeoutRe.FindStringSubmatch(line)
			cur.Outcome = OutcomeTimeout
			cur.Timeout = parseSeconds(m[1])
			cur.Duration = parseSeconds(m[2])
		case killedRe.MatchString(line):
			cur.Outcome = OutcomeKilled
			cur.Duration = parseSeconds(killedRe.FindStringSubmatch(line)[1])
		case strings.HasPrefix(line, "[stderr] "):
			cur.StderrLines++
		default:
			cur.StdoutLines++
			extractUsage(line, cur)
		}
	}
	if err := scanner.Err(); err != nil {
		return runs, err
	}
	return runs, nil
}

// extractUsage picks tool calls and token counts out of stream-json lines.
func extractUsage(line string, run *AuditRun) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return
	}
	var msg struct {
		Type  string         `json:"type"`
		Stats map[string]any `json:"stats"`
	}
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return
	}
	switch msg.Type {
	case "tool_use":
		run.ToolUses++
	case "result":
		run.InputTokens += statInt(msg.Stats, "input_tokens", "prompt_tokens")
		run.OutputTokens += statInt(msg.Stats, "output_tokens", "candidates_tokens")
	}
}

func statInt(stats map[string]any, keys ...string) int64 {
	for _, k := range keys {
		if v, ok := stats[k].(float64); ok {
			return int64(v)
		}
	}
	return 0
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// newLineScanner creates a scanner with a larger buffer for long lines.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return scanner
}
