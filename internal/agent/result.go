package agent

import (
	"strings"
	"time"
)

// ExecutionResult is the normalized outcome of one invocation, identical in
// shape for both variants. It is produced once and not modified afterwards.
type ExecutionResult struct {
	// Output is the accumulated assistant text.
	Output    string
	ExitCode  int
	SessionID string
	Provider  string
	Model     string

	Duration time.Duration
	// FirstOutput is the delay from launch to the first decoded output unit;
	// nil if the process never produced any.
	FirstOutput *time.Duration

	// Metadata holds backend-reported data: "status" and "stats" from the
	// result message, "tool_uses", "errors", "unknown_events", "post_hook".
	Metadata map[string]any

	// Stderr is the tail of the child's diagnostic output.
	Stderr string

	// Events counts decoded stdout events.
	Events int

	// Err is the fatal error that ended the invocation, nil for a natural exit.
	Err error
}

// Success reports a clean run: exit code 0 and no fatal error.
func (r *ExecutionResult) Success() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// DurationSeconds returns Duration in seconds.
func (r *ExecutionResult) DurationSeconds() float64 {
	return r.Duration.Seconds()
}

// FirstOutputSeconds returns FirstOutput in seconds.
func (r *ExecutionResult) FirstOutputSeconds() (float64, bool) {
	if r.FirstOutput == nil {
		return 0, false
	}
	return r.FirstOutput.Seconds(), true
}

// Status returns the status reported by the backend's result message, if any.
func (r *ExecutionResult) Status() string {
	s, _ := r.Metadata["status"].(string)
	return s
}

// accumulator folds events into result fields. It is owned by the read loop.
type accumulator struct {
	out       strings.Builder
	any       bool
	lastDelta bool
	closed    bool // a result message ended content accumulation

	events    int
	sessionID string
	model     string
	metadata  map[string]any
	toolUses  int
	errors    []string
	unknown   int
}

func newAccumulator() *accumulator {
	return &accumulator{metadata: make(map[string]any)}
}

func (a *accumulator) add(ev Event) {
	a.events++
	switch ev.Kind {
	case EventText:
		if a.closed {
			return
		}
		// Deltas continue the previous chunk; whole messages start a new line.
		if a.any && !(ev.Delta && a.lastDelta) {
			a.out.WriteByte('\n')
		}
		a.out.WriteString(ev.Text)
		a.any = true
		a.lastDelta = ev.Delta
	case EventToolUse:
		a.toolUses++
	case EventResult:
		a.closed = true
		if ev.Status != "" {
			a.metadata["status"] = ev.Status
		}
		if ev.Stats != nil {
			a.metadata["stats"] = ev.Stats
		}
		if ev.Text != "" {
			a.errors = append(a.errors, ev.Text)
		}
	case EventInit:
		if ev.SessionID != "" {
			a.sessionID = ev.SessionID
		}
		if ev.Model != "" {
			a.model = ev.Model
		}
	case EventError:
		a.errors = append(a.errors, ev.Text)
	case EventUnknown:
		a.unknown++
	}
}

// resultSeen reports whether a result message has arrived.
func (a *accumulator) resultSeen() bool {
	return a.closed
}

func (a *accumulator) fill(r *ExecutionResult) {
	r.Output = a.out.String()
	r.Events = a.events
	if a.sessionID != "" {
		r.SessionID = a.sessionID
	}
	if a.model != "" {
		r.Model = a.model
	}
	for k, v := range a.metadata {
		r.Metadata[k] = v
	}
	if a.toolUses > 0 {
		r.Metadata["tool_uses"] = a.toolUses
	}
	if len(a.errors) > 0 {
		r.Metadata["errors"] = append([]string(nil), a.errors...)
	}
	if a.unknown > 0 {
		r.Metadata["unknown_events"] = a.unknown
	}
}

// tailBuffer keeps the last max bytes of newline-joined lines.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) addLine(line string) {
	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
}

func (t *tailBuffer) String() string {
	return strings.TrimRight(string(t.buf), "\n")
}
