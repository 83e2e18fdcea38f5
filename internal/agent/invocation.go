package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matt/agentexec/internal/audit"
	"github.com/matt/agentexec/internal/hook"
	"github.com/matt/agentexec/internal/process"
)

const (
	// pollInterval bounds every wait in the read loop so the deadline check runs.
	pollInterval = 50 * time.Millisecond

	// drainTimeout bounds reading leftover output after the process exited,
	// for descendants that escaped the group and still hold the pipes.
	drainTimeout = 2 * time.Second

	// reapTimeout bounds the wait for exit after SIGKILL.
	reapTimeout = 5 * time.Second

	stderrTailBytes = 64 * 1024
	maxLineBytes    = 64 * 1024
)

// Invocation is the handle to one running agent process. Kill may be called
// from any goroutine; Wait returns the result once the process is gone.
type Invocation struct {
	cfg     InvocationConfig
	command Command
	backend Backend
	handle  *processHandle
	audit   *audit.Log
	logger  *zap.Logger
	tracker *tracker

	onEvent  func(Event)
	onStderr func(string)
	post     hook.Validator

	sessionID string

	mu       sync.Mutex
	killed   bool
	reaped   bool
	byCtx    bool
	killCh   chan struct{}
	stopping atomic.Bool

	done   chan struct{}
	result *ExecutionResult
	err    error
}

// PID returns the process id of the agent.
func (inv *Invocation) PID() int {
	return inv.handle.pid
}

// PGID returns the process group id the agent leads.
func (inv *Invocation) PGID() int {
	return inv.handle.pgid
}

// Command returns the command that was launched.
func (inv *Invocation) Command() Command {
	return inv.command
}

// StartedAt returns the launch time.
func (inv *Invocation) StartedAt() time.Time {
	return inv.tracker.start
}

// FirstOutput returns the delay until the first decoded output, if seen yet.
func (inv *Invocation) FirstOutput() (time.Duration, bool) {
	return inv.tracker.firstOutput()
}

// State reports whether the agent has engaged yet.
func (inv *Invocation) State() State {
	return inv.tracker.current()
}

// Done is closed once the result is available.
func (inv *Invocation) Done() <-chan struct{} {
	return inv.done
}

// Wait blocks until the process has exited and returns its result. On a
// fatal error the partial result is returned together with the error.
func (inv *Invocation) Wait() (*ExecutionResult, error) {
	<-inv.done
	return inv.result, inv.err
}

// Kill terminates the agent's process group. The first call sends SIGTERM
// and returns true; the read loop escalates to SIGKILL after the kill grace
// period. Later calls, or calls after the process was reaped, return false.
// A process that is already gone counts as killed.
func (inv *Invocation) Kill() (bool, error) {
	return inv.terminate()
}

func (inv *Invocation) terminate() (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.killed || inv.reaped {
		return false, nil
	}
	if err := process.TerminateGroup(inv.handle.pgid); err != nil {
		return false, &ProcessKillError{PID: inv.handle.pgid, Signal: "SIGTERM", Err: err}
	}
	inv.killed = true
	inv.stopping.Store(true)
	close(inv.killCh)
	inv.logger.Info("sent SIGTERM to agent process group", zap.Int("pgid", inv.handle.pgid))
	return true, nil
}

func (inv *Invocation) isKilled() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.killed
}

func (inv *Invocation) markReaped() {
	inv.mu.Lock()
	inv.reaped = true
	inv.mu.Unlock()
}

type waitResult struct {
	err error
	at  time.Time
}

// loopState is owned by the read loop goroutine.
type loopState struct {
	acc      *accumulator
	stderr   tailBuffer
	blockBuf strings.Builder
	fatal    error
	killErr  error
}

// run is the single read loop of the invocation. Line readers forward
// complete lines over channels; every other piece of state is touched only
// here, so the accumulator needs no locking.
func (inv *Invocation) run(ctx context.Context) {
	defer close(inv.done)
	defer inv.tracker.finish()
	defer inv.audit.Close()

	h := inv.handle
	start := h.started
	st := &loopState{acc: newAccumulator(), stderr: tailBuffer{max: stderrTailBytes}}

	quit := make(chan struct{})
	defer close(quit)
	stdoutCh := make(chan string, 16)
	stderrCh := make(chan string, 16)
	go readLines(h.stdout, stdoutCh, quit)
	go readLines(h.stderr, stderrCh, quit)

	waitCh := make(chan waitResult, 1)
	go func() {
		err := h.cmd.Wait()
		inv.markReaped()
		waitCh <- waitResult{err: err, at: time.Now()}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var deadline time.Time
	if inv.cfg.Timeout > 0 {
		deadline = start.Add(inv.cfg.Timeout)
	}
	var (
		exited        *waitResult
		drainDeadline time.Time
		killDeadline  time.Time
		forced        bool
		abandonAt     time.Time
	)
	killCh := inv.killCh
	ctxDone := ctx.Done()

loop:
	for {
		now := time.Now()
		if exited != nil {
			if stdoutCh == nil && stderrCh == nil {
				break
			}
			if now.After(drainDeadline) {
				inv.logger.Warn("output pipes still open after exit, abandoning drain", zap.Int("pid", h.pid))
				break
			}
		} else {
			if !deadline.IsZero() && st.fatal == nil && !inv.stopping.Load() && now.After(deadline) {
				st.fatal = &TimeoutError{Configured: inv.cfg.Timeout}
				inv.logger.Warn("agent deadline exceeded",
					zap.Int("pid", h.pid),
					zap.Duration("timeout", inv.cfg.Timeout),
					zap.Duration("elapsed", now.Sub(start)))
				if _, err := inv.terminate(); err != nil {
					st.killErr = err
					break
				}
			}
			if !killDeadline.IsZero() && !forced && now.After(killDeadline) {
				inv.logger.Warn("agent ignored SIGTERM, sending SIGKILL", zap.Int("pgid", h.pgid))
				if err := process.ForceKillGroup(h.pgid); err != nil {
					st.killErr = &ProcessKillError{PID: h.pgid, Signal: "SIGKILL", Err: err}
					break
				}
				forced = true
				abandonAt = now.Add(reapTimeout)
			}
			if forced && now.After(abandonAt) {
				inv.logger.Error("agent did not exit after SIGKILL", zap.Int("pid", h.pid))
				break
			}
		}

		select {
		case line, ok := <-stdoutCh:
			if !ok {
				stdoutCh = nil
				continue
			}
			inv.handleStdout(line, st)
		case line, ok := <-stderrCh:
			if !ok {
				stderrCh = nil
				continue
			}
			inv.handleStderr(line, st)
		case w := <-waitCh:
			exited = &w
			drainDeadline = w.at.Add(drainTimeout)
		case <-killCh:
			killCh = nil
			killDeadline = time.Now().Add(inv.cfg.killGrace())
		case <-ctxDone:
			ctxDone = nil
			sent, err := inv.terminate()
			if err != nil {
				st.killErr = err
				break loop
			}
			if sent {
				inv.mu.Lock()
				inv.byCtx = true
				inv.mu.Unlock()
			}
		case <-ticker.C:
		}
	}

	h.close()
	inv.finish(ctx, st, exited)
}

// handleStdout audits, decodes and accumulates one stdout line.
func (inv *Invocation) handleStdout(line string, st *loopState) {
	_ = inv.audit.Line(line)

	// Kill wins: nothing read after a kill request reaches the result.
	if inv.stopping.Load() || st.fatal != nil {
		return
	}

	if inv.cfg.Blocking {
		st.blockBuf.WriteString(line)
		st.blockBuf.WriteByte('\n')
		inv.markFirstOutput()
		return
	}

	ev, ok := inv.backend.Decode(line)
	if !ok {
		return
	}
	ev.Elapsed = time.Since(inv.tracker.start)
	inv.markFirstOutput()

	if ev.Kind == EventMalformed {
		st.fatal = &MalformedStreamChunkError{Raw: ev.Raw, Cause: ev.Err}
		inv.logger.Error("malformed stream chunk, aborting agent",
			zap.Int("pid", inv.handle.pid),
			zap.String("raw", truncate(ev.Raw, 200)),
			zap.Error(ev.Err))
		if _, err := inv.terminate(); err != nil {
			st.killErr = err
		}
		return
	}

	// Lines after the result message are drained but are not content.
	if st.acc.resultSeen() && ev.Kind != EventResult {
		return
	}
	st.acc.add(ev)
	if inv.onEvent != nil {
		inv.onEvent(ev)
	}
}

func (inv *Invocation) handleStderr(line string, st *loopState) {
	_ = inv.audit.Line("[stderr] " + line)
	st.stderr.addLine(line)
	if inv.onStderr != nil {
		inv.onStderr(line)
	}
}

func (inv *Invocation) markFirstOutput() {
	elapsed, first := inv.tracker.mark(time.Now())
	if !first {
		return
	}
	inv.logger.Debug("first output", zap.Int("pid", inv.handle.pid), zap.Duration("elapsed", elapsed))
	if inv.cfg.FirstOutputMarkers {
		_ = inv.audit.FirstOutput(elapsed)
	}
}

// finish assembles the result once the loop is over.
func (inv *Invocation) finish(ctx context.Context, st *loopState, exited *waitResult) {
	h := inv.handle
	end := time.Now()
	exitCode := -1
	if exited != nil {
		end = exited.at
		if h.cmd.ProcessState != nil {
			exitCode = h.cmd.ProcessState.ExitCode()
		} else {
			var exitErr *exec.ExitError
			if errors.As(exited.err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
		}
	}
	duration := end.Sub(h.started)

	inv.mu.Lock()
	killed, byCtx := inv.killed, inv.byCtx
	inv.mu.Unlock()

	// Blocking mode decodes the whole output once the process is done.
	if inv.cfg.Blocking && st.fatal == nil && !killed && exited != nil {
		if fd, ok := inv.backend.(finalDecoder); ok {
			events, err := fd.DecodeFinal([]byte(st.blockBuf.String()))
			if err != nil {
				st.fatal = err
			}
			for _, ev := range events {
				st.acc.add(ev)
				if inv.onEvent != nil {
					inv.onEvent(ev)
				}
			}
		}
	}

	res := &ExecutionResult{
		ExitCode:  exitCode,
		SessionID: inv.sessionID,
		Provider:  inv.backend.Provider(),
		Model:     inv.cfg.Model,
		Duration:  duration,
		Metadata:  make(map[string]any),
		Stderr:    st.stderr.String(),
	}
	st.acc.fill(res)
	if first, ok := inv.tracker.firstOutput(); ok {
		if first > duration {
			first = duration
		}
		res.FirstOutput = &first
	}

	var err error
	switch {
	case st.fatal != nil:
		err = st.fatal
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			timeoutErr.Actual = duration
			_ = inv.audit.TimeoutExceeded(timeoutErr.Configured, duration)
		} else if killed {
			_ = inv.audit.Killed(duration)
		} else {
			_ = inv.audit.Completed(exitCode, duration)
		}
	case killed:
		err = ErrKilled
		if byCtx {
			err = fmt.Errorf("%w: %w", ErrKilled, context.Cause(ctx))
		}
		_ = inv.audit.Killed(duration)
	case exited != nil && res.FirstOutput == nil && duration < inv.cfg.startGrace():
		err = &ImmediateExitError{ExitCode: exitCode, After: duration, Stderr: res.Stderr}
		_ = inv.audit.Completed(exitCode, duration)
	default:
		_ = inv.audit.Completed(exitCode, duration)
	}
	res.Err = err

	if st.killErr != nil {
		err = st.killErr
	}

	inv.runPostHook(res)

	fields := []zap.Field{
		zap.Int("pid", h.pid),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", duration),
		zap.Int("events", res.Events),
	}
	if err != nil {
		inv.logger.Warn("agent invocation failed", append(fields, zap.Error(err))...)
	} else {
		inv.logger.Info("agent invocation completed", fields...)
	}

	inv.result = res
	inv.err = err
}

func (inv *Invocation) runPostHook(res *ExecutionResult) {
	if inv.post == nil {
		return
	}
	outcome := &hook.Outcome{
		ExitCode: res.ExitCode,
		Success:  res.Success(),
		Duration: res.DurationSeconds(),
		Output:   res.Output,
	}
	if res.Err != nil {
		outcome.Error = res.Err.Error()
	}
	d, err := inv.post.Validate(context.Background(), hook.Input{
		Phase:   hook.PhasePost,
		Command: inv.command.Argv(),
		Context: inv.cfg.Context,
		Result:  outcome,
	})
	if err != nil {
		res.Metadata["post_hook_error"] = err.Error()
		return
	}
	res.Metadata["post_hook"] = map[string]any{"decision": string(d.Action), "reason": d.Reason}
}

// readLines forwards complete lines from r until EOF. A partial line is held
// until its newline arrives; a trailing unterminated line is delivered only
// at EOF, when it can no longer grow.
func readLines(r io.Reader, out chan<- string, quit <-chan struct{}) {
	defer close(out)
	br := bufio.NewReaderSize(r, maxLineBytes)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 && (err == nil || errors.Is(err, io.EOF)) {
			line = strings.TrimRight(line, "\r\n")
			select {
			case out <- line:
			case <-quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}
