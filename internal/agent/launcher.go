package agent

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/matt/agentexec/internal/process"
)

// processHandle is the live child process. It belongs to exactly one
// Invocation and is never shared.
type processHandle struct {
	cmd     *exec.Cmd
	pid     int
	pgid    int
	stdout  *os.File
	stderr  *os.File
	started time.Time
}

// close releases the read ends of the output pipes. A reader blocked on
// them returns immediately.
func (h *processHandle) close() {
	_ = h.stdout.Close()
	_ = h.stderr.Close()
}

// newPipe is os.Pipe; tests replace it to simulate descriptor exhaustion.
var newPipe = os.Pipe

// launch starts the command in its own process group with stdin, stdout and
// stderr on three separate pipes. input is written to stdin, which is then
// closed. A non-nil id drops the child to that user.
func launch(c Command, input string, id *identity) (*processHandle, error) {
	resolved, err := exec.LookPath(c.Path)
	if err != nil {
		return nil, &CommandNotFoundError{Executable: c.Path, Err: err}
	}

	cmd := exec.Command(resolved, c.Args...)
	cmd.Dir = c.Dir

	// Inherit parent environment and append custom vars (later values override earlier)
	if len(c.Env) > 0 || id != nil {
		env := append(os.Environ(), c.Env...)
		if id != nil {
			env = rewriteEnv(env, id)
		}
		cmd.Env = env
	}
	setProcAttr(cmd, id)

	// Own pipes instead of StdoutPipe: Wait must not close the read ends
	// before the read loop has drained them.
	stdoutR, stdoutW, err := newPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := newPipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	// Created last: exec only releases its ends once Start has been called.
	stdin, err := cmd.StdinPipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	started := time.Now()
	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}
	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()

	go writeInput(stdin, input)

	pid := cmd.Process.Pid
	pgid, err := process.GroupOf(pid)
	if err != nil {
		pgid = pid
	}

	return &processHandle{
		cmd:     cmd,
		pid:     pid,
		pgid:    pgid,
		stdout:  stdoutR,
		stderr:  stderrR,
		started: started,
	}, nil
}

// writeInput delivers the payload and closes stdin so the child sees EOF.
// Write errors mean the child stopped reading; the read loop reports that.
func writeInput(stdin io.WriteCloser, input string) {
	if input != "" {
		_, _ = io.WriteString(stdin, input)
	}
	_ = stdin.Close()
}
