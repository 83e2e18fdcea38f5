package agent

import (
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/matt/agentexec/internal/hook"
)

// ErrKilled is the fatal error of an invocation stopped by Kill or by
// cancellation of its context.
var ErrKilled = errors.New("agent invocation was killed")

// ConfigurationError reports an invalid InvocationConfig. No process is created.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Reason)
}

// CommandNotFoundError reports an executable that could not be resolved.
type CommandNotFoundError struct {
	Executable string
	Err        error
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("agent command not found: %s: %v", e.Executable, e.Err)
}

func (e *CommandNotFoundError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, exec.ErrNotFound) hold for any CommandNotFoundError.
func (e *CommandNotFoundError) Is(target error) bool {
	return target == exec.ErrNotFound
}

// ImmediateExitError reports a child that exited inside the start grace
// window without producing any output.
type ImmediateExitError struct {
	ExitCode int
	After    time.Duration
	Stderr   string
}

func (e *ImmediateExitError) Error() string {
	msg := fmt.Sprintf("agent exited immediately (exit code %d after %v) without output", e.ExitCode, e.After.Round(time.Millisecond))
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// MalformedStreamChunkError reports a stdout line the JSON variant could
// not decode. The invocation is aborted when this happens.
type MalformedStreamChunkError struct {
	Raw   string
	Cause error
}

func (e *MalformedStreamChunkError) Error() string {
	return fmt.Sprintf("malformed stream chunk %q: %v", truncate(e.Raw, 200), e.Cause)
}

func (e *MalformedStreamChunkError) Unwrap() error { return e.Cause }

// TimeoutError reports that the deadline passed and the child was killed.
type TimeoutError struct {
	Configured time.Duration
	Actual     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent timed out after %v (actual: %.1fs)", e.Configured, e.Actual.Seconds())
}

// ProcessKillError reports a termination signal that could not be delivered
// for a reason other than the process already being gone.
type ProcessKillError struct {
	PID    int
	Signal string
	Err    error
}

func (e *ProcessKillError) Error() string {
	return fmt.Sprintf("failed to send %s to process group %d: %v", e.Signal, e.PID, e.Err)
}

func (e *ProcessKillError) Unwrap() error { return e.Err }

// HookDecisionError reports a pre-execution hook that did not allow the
// invocation. For hook.Deny the process was never launched; hook.Ask is
// returned unresolved for the caller to settle.
type HookDecisionError struct {
	Decision hook.Decision
}

func (e *HookDecisionError) Error() string {
	if e.Decision.Reason == "" {
		return fmt.Sprintf("invocation not allowed by hook (%s)", e.Decision.Action)
	}
	return fmt.Sprintf("invocation not allowed by hook (%s): %s", e.Decision.Action, e.Decision.Reason)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
