package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DenyExitCode is the exit status a hook command uses to deny without
// printing a JSON decision; its stderr becomes the reason.
const DenyExitCode = 2

// DefaultTimeout bounds a hook command when none is configured.
const DefaultTimeout = 30 * time.Second

// pipeWaitDelay bounds how long Validate waits for output pipes after the
// hook has been killed.
const pipeWaitDelay = 500 * time.Millisecond

// CommandValidator runs a shell command as a validator.
//
// The command receives the Input as JSON on stdin and as AGENTEXEC_*
// environment variables. It answers by printing {"decision":..,"reason":..}
// on stdout, or by exiting with DenyExitCode. Exit 0 with no output allows.
type CommandValidator struct {
	Name    string
	Command string
	Dir     string
	Timeout time.Duration
}

// Validate implements Validator.
func (v *CommandValidator) Validate(ctx context.Context, in Input) (Decision, error) {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return Decision{}, fmt.Errorf("hook %s: failed to encode input: %w", v.label(), err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", v.Command)
	cmd.Env = append(os.Environ(), hookEnv(in)...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.WaitDelay = pipeWaitDelay
	killGroupOnCancel(cmd)
	if v.Dir != "" {
		cmd.Dir = v.Dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Decision{}, fmt.Errorf("hook %s timed out after %v", v.label(), timeout)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() == DenyExitCode {
			reason := strings.TrimSpace(stderr.String())
			if reason == "" {
				reason = fmt.Sprintf("denied by hook %s", v.label())
			}
			return Decision{Action: Deny, Reason: reason}, nil
		}
		return Decision{}, fmt.Errorf("hook %s failed: %w: %s", v.label(), runErr, strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return Decision{Action: Allow}, nil
	}
	var raw struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return Decision{}, fmt.Errorf("hook %s: invalid decision output %q: %w", v.label(), string(out), err)
	}
	action, err := ParseAction(raw.Decision)
	if err != nil {
		return Decision{}, fmt.Errorf("hook %s: %w", v.label(), err)
	}
	return Decision{Action: action, Reason: raw.Reason}, nil
}

func (v *CommandValidator) label() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Command
}

// hookEnv exposes the input to the hook as environment variables.
// Context keys are upper-cased into AGENTEXEC_CTX_<KEY>.
func hookEnv(in Input) []string {
	env := []string{
		"AGENTEXEC_HOOK_PHASE=" + string(in.Phase),
		"AGENTEXEC_COMMAND=" + strings.Join(in.Command, " "),
	}
	for k, val := range in.Context {
		key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(k))
		env = append(env, "AGENTEXEC_CTX_"+key+"="+val)
	}
	if in.Result != nil {
		env = append(env,
			fmt.Sprintf("AGENTEXEC_EXIT_CODE=%d", in.Result.ExitCode),
			fmt.Sprintf("AGENTEXEC_SUCCESS=%t", in.Result.Success),
			fmt.Sprintf("AGENTEXEC_DURATION=%.3f", in.Result.Duration),
		)
	}
	return env
}
