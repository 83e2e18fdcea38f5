// Package agent runs AI coding agent CLIs as child processes and turns their
// output into a normalized ExecutionResult.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matt/agentexec/internal/audit"
	"github.com/matt/agentexec/internal/hook"
)

// Runner launches agent invocations. A Runner holds no per-invocation state
// and may start any number of concurrent invocations.
type Runner struct {
	logger   *zap.Logger
	onEvent  func(Event)
	onStderr func(string)
	hooks    hook.Hooks
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEventHandler registers a callback for every decoded stdout event.
// It is called from the read loop and must not block for long.
func WithEventHandler(fn func(Event)) Option {
	return func(r *Runner) { r.onEvent = fn }
}

// WithStderrHandler registers a callback for every stderr line.
func WithStderrHandler(fn func(string)) Option {
	return func(r *Runner) { r.onStderr = fn }
}

// WithHooks installs pre- and post-execution validators.
func WithHooks(h hook.Hooks) Option {
	return func(r *Runner) { r.hooks = h }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start validates cfg, consults the pre-execution hooks and launches the
// agent. It returns as soon as the process is running. Errors returned here
// mean no process was left behind.
//
// Cancelling ctx kills the invocation; Wait then reports ErrKilled.
func (r *Runner) Start(ctx context.Context, cfg InvocationConfig) (*Invocation, error) {
	command, err := BuildCommand(cfg)
	if err != nil {
		return nil, err
	}

	if len(r.hooks.Pre) > 0 {
		d, err := r.hooks.Pre.Validate(ctx, hook.Input{
			Phase:   hook.PhasePre,
			Command: command.Argv(),
			Context: cfg.Context,
		})
		if err != nil {
			return nil, fmt.Errorf("pre-execution hook: %w", err)
		}
		if d.Action != hook.Allow {
			r.logger.Info("invocation blocked by hook",
				zap.String("decision", string(d.Action)),
				zap.String("reason", d.Reason))
			return nil, &HookDecisionError{Decision: d}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		return nil, err
	}

	id := lookupIdentity()
	if id != nil {
		r.logger.Debug("dropping privileges for agent", zap.Stringer("user", id))
	}

	h, err := launch(command, cfg.Input, id)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	sessionID := uuid.NewString()
	logger := r.logger.With(
		zap.String("provider", command.backend.Provider()),
		zap.String("model", cfg.Model),
		zap.String("session_id", sessionID),
	)
	if skipped := command.BestEffortTools(); len(skipped) > 0 {
		logger.Debug("tool names translated best effort", zap.Strings("tools", skipped))
	}
	_ = log.Started(h.pid)
	logger.Info("agent started",
		zap.Int("pid", h.pid),
		zap.Int("pgid", h.pgid),
		zap.Strings("argv", command.Argv()))

	inv := &Invocation{
		cfg:       cfg,
		command:   command,
		backend:   command.backend,
		handle:    h,
		audit:     log,
		logger:    logger,
		tracker:   newTracker(h.started),
		onEvent:   r.onEvent,
		onStderr:  r.onStderr,
		sessionID: sessionID,
		killCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if len(r.hooks.Post) > 0 {
		inv.post = r.hooks.Post
	}
	go inv.run(ctx)
	return inv, nil
}

// Run starts an invocation and waits for it to finish.
func (r *Runner) Run(ctx context.Context, cfg InvocationConfig) (*ExecutionResult, error) {
	inv, err := r.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inv.Wait()
}
