package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/agentexec/internal/agent"
	"github.com/matt/agentexec/internal/config"
	"github.com/matt/agentexec/internal/hook"
	"github.com/matt/agentexec/internal/logparser"
	"github.com/matt/agentexec/internal/output"
	"github.com/matt/agentexec/internal/process"
	"github.com/matt/agentexec/internal/prompt"
	"github.com/matt/agentexec/internal/tools"
)

var (
	runBackend            string
	runModel              string
	runTools              string
	runTimeout            int
	runKillGrace          int
	runWorkingDir         string
	runAuditLog           string
	runFirstOutputMarkers bool
	runHooksFile          string
	runBlocking           bool
	runExecutable         string
	runPromptFile         string
	runEnv                []string
	runDryRun             bool
	runJSON               bool
	runQuiet              bool
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Run an agent",
	Long: `Run an agent CLI with a prompt and wait for it to finish.

The prompt is taken from the arguments, or from --prompt-file ("-" reads
stdin), and is sent to the agent on stdin. Prompt files may pull in other
files with {{include: path}}; paths are relative to the including file. Agent output is rendered as it
streams; a summary is printed when the agent exits.

Flags override the project and global configuration files. The command
exits with the agent's exit code when the agent exits non-zero.`,
	Example: `  # Single question with the configured backend
  agentexec run "What does internal/agent do?"

  # Gemini CLI, streaming JSON, no tools at all
  agentexec run -b gemini-cli --tools none -f prompt.md

  # Limit wall-clock time and keep an audit log
  agentexec run --timeout 600 --audit-log agent.log "Fix the failing test"

  # Machine-readable result
  agentexec run --json "Summarize README.md" | jq .output

  # Pass extra environment to the agent
  agentexec run -e GEMINI_API_KEY=... -b gemini-cli "hello"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := effectiveConfig(cmd)
		if err != nil {
			return err
		}

		promptContent, err := loadPrompt(args, runPromptFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if promptContent == "" && !runDryRun {
			return fmt.Errorf("a prompt is required (pass it as arguments or with --prompt-file)")
		}

		invCfg, err := cfg.ToInvocation(promptContent)
		if err != nil {
			return err
		}
		invCfg.Env = runEnv
		invCfg.Context = map[string]string{
			"backend":     cfg.Backend,
			"model":       cfg.Model,
			"working_dir": cfg.WorkingDir,
		}

		if runDryRun {
			return printDryRun(cmd.OutOrStdout(), invCfg)
		}

		var hooks hook.Hooks
		if cfg.HooksFile != "" {
			hooks, err = hook.LoadFile(cfg.HooksFile)
			if err != nil {
				return err
			}
		}

		return runAgent(cmd, invCfg, hooks)
	},
}

// effectiveConfig applies the run flags on top of the loaded config.
func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := *appConfig
	flags := cmd.Flags()

	// Backend first: it resets model and executable to the preset
	if flags.Changed("backend") {
		if err := cfg.SetBackend(runBackend); err != nil {
			return nil, err
		}
	}
	if flags.Changed("model") {
		cfg.Model = runModel
	}
	if flags.Changed("tools") {
		cfg.Tools = tools.ParseSet(runTools)
	}
	if flags.Changed("timeout") {
		if runTimeout <= 0 {
			return nil, &agent.ConfigurationError{Field: "--timeout", Reason: "must be a positive number of seconds (omit it for no limit)"}
		}
		cfg.Timeout = runTimeout
	}
	if flags.Changed("kill-grace") {
		if runKillGrace < 0 {
			return nil, fmt.Errorf("--kill-grace must not be negative")
		}
		cfg.KillGrace = runKillGrace
	}
	if flags.Changed("workdir") {
		cfg.WorkingDir = runWorkingDir
	}
	if flags.Changed("audit-log") {
		cfg.AuditLog = runAuditLog
	}
	if flags.Changed("first-output-markers") {
		cfg.FirstOutputMarkers = runFirstOutputMarkers
	}
	if flags.Changed("hooks-file") {
		cfg.HooksFile = runHooksFile
	}
	if flags.Changed("blocking") {
		cfg.Blocking = runBlocking
	}
	if flags.Changed("executable") {
		cfg.Command.Executable = runExecutable
	}
	return &cfg, nil
}

// loadPrompt returns the prompt from the arguments or the prompt file.
func loadPrompt(args []string, promptFile string, stdin io.Reader) (string, error) {
	if promptFile != "" && len(args) > 0 {
		return "", fmt.Errorf("only one of prompt arguments or --prompt-file can be specified")
	}
	if promptFile == "" {
		return strings.Join(args, " "), nil
	}
	return prompt.LoadFile(promptFile, stdin)
}

func printDryRun(w io.Writer, invCfg agent.InvocationConfig) error {
	command, err := agent.BuildCommand(invCfg)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	quoted := make([]string, 0, len(command.Args)+1)
	for _, a := range command.Argv() {
		quoted = append(quoted, shellQuote(a))
	}
	bold.Fprintln(w, "Command")
	fmt.Fprintf(w, "  %s\n", strings.Join(quoted, " "))
	if command.Dir != "" {
		fmt.Fprintf(w, "  (in %s)\n", command.Dir)
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Tools")
	if invCfg.Tools.IsAll() {
		fmt.Fprintln(w, "  all (no restriction flag)")
	} else if len(command.Tools) == 0 {
		fmt.Fprintln(w, "  none (every tool disabled)")
	}
	for _, m := range command.Tools {
		line := fmt.Sprintf("  %-10s -> %s", m.Canonical, m.Name)
		if m.BestEffort {
			line += dim.Sprint("  (derived)")
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Input")
	fmt.Fprintf(w, "  %d bytes on stdin\n", len(invCfg.Input))
	if invCfg.Timeout > 0 {
		fmt.Fprintf(w, "  timeout %s, kill grace %s\n", invCfg.Timeout, invCfg.KillGrace)
	}
	return nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n'\"$`\\|&;<>()*?[]{}~!#") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

func runAgent(cmd *cobra.Command, invCfg agent.InvocationConfig, hooks hook.Hooks) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	console := output.NewConsole(stdout, stderr)
	parser := logparser.NewParser(console.Events())

	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithHooks(hooks),
	}
	if !runJSON && !runQuiet {
		opts = append(opts,
			agent.WithEventHandler(parser.ProcessEvent),
			agent.WithStderrHandler(console.Stderr().WriteLine),
		)
	}
	runner := agent.NewRunner(opts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	inv, err := runner.Start(ctx, invCfg)
	if err != nil {
		return err
	}
	if !runJSON && !runQuiet {
		fmt.Fprintf(stderr, "[agentexec] Started %s (PID: %d)\n", inv.Command().Path, inv.PID())
	}

	// First signal asks the agent to stop; a second one forces it.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		interrupts := 0
		for {
			select {
			case <-sigCh:
				interrupts++
				if interrupts == 1 {
					fmt.Fprintln(stderr, "\n[agentexec] Received interrupt, stopping agent...")
					if _, err := inv.Kill(); err != nil {
						fmt.Fprintf(stderr, "[agentexec] Warning: %v\n", err)
					}
					continue
				}
				fmt.Fprintln(stderr, "[agentexec] Forcing agent to stop")
				_ = process.ForceKillGroup(inv.PGID())
			case <-inv.Done():
				return
			}
		}
	}()

	res, runErr := inv.Wait()
	parser.Flush()
	console.Flush()

	switch {
	case runJSON:
		if err := writeJSONResult(stdout, res, runErr); err != nil {
			return err
		}
	case runQuiet:
		if res != nil && res.Output != "" {
			fmt.Fprintln(stdout, res.Output)
		}
	default:
		fmt.Fprintln(stderr, renderSummary(res, runErr))
	}

	if runErr != nil {
		if runJSON {
			return &exitCodeError{code: 1}
		}
		return runErr
	}
	if res.ExitCode != 0 {
		return &exitCodeError{code: res.ExitCode}
	}
	return nil
}

// runReport is the --json form of a result.
type runReport struct {
	Output             string         `json:"output"`
	ExitCode           int            `json:"exit_code"`
	Success            bool           `json:"success"`
	SessionID          string         `json:"session_id"`
	Provider           string         `json:"provider"`
	Model              string         `json:"model"`
	DurationSeconds    float64        `json:"duration_seconds"`
	FirstOutputSeconds *float64       `json:"first_output_seconds"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Stderr             string         `json:"stderr,omitempty"`
	Error              string         `json:"error,omitempty"`
}

func newRunReport(res *agent.ExecutionResult, runErr error) runReport {
	var r runReport
	if res != nil {
		r = runReport{
			Output:          res.Output,
			ExitCode:        res.ExitCode,
			Success:         res.Success(),
			SessionID:       res.SessionID,
			Provider:        res.Provider,
			Model:           res.Model,
			DurationSeconds: res.DurationSeconds(),
			Metadata:        res.Metadata,
			Stderr:          res.Stderr,
		}
		if s, ok := res.FirstOutputSeconds(); ok {
			r.FirstOutputSeconds = &s
		}
	}
	if runErr != nil {
		r.Success = false
		r.Error = runErr.Error()
	}
	return r
}

func writeJSONResult(w io.Writer, res *agent.ExecutionResult, runErr error) error {
	data, err := json.MarshalIndent(newRunReport(res, runErr), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	summaryLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	summaryOK = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	summaryFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

// renderSummary draws the end-of-run box.
func renderSummary(res *agent.ExecutionResult, runErr error) string {
	status := summaryOK.Render("success")
	if runErr != nil || res == nil || !res.Success() {
		status = summaryFailed.Render(outcomeLabel(res, runErr))
	}

	rows := []string{row("Status", status)}
	if res != nil {
		rows = append(rows,
			row("Provider", res.Provider+" / "+res.Model),
			row("Exit code", fmt.Sprintf("%d", res.ExitCode)),
			row("Duration", res.Duration.Round(time.Millisecond).String()),
		)
		if res.FirstOutput != nil {
			rows = append(rows, row("First output", res.FirstOutput.Round(time.Millisecond).String()))
		}
		rows = append(rows, row("Session", res.SessionID))
		if n, ok := res.Metadata["tool_uses"].(int); ok {
			rows = append(rows, row("Tool calls", fmt.Sprintf("%d", n)))
		}
	}
	if runErr != nil {
		rows = append(rows, row("Error", runErr.Error()))
	}
	return summaryBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, summaryLabel.Render(label), value)
}

func outcomeLabel(res *agent.ExecutionResult, runErr error) string {
	var timeout *agent.TimeoutError
	switch {
	case runErr == nil && res != nil:
		return "failed"
	case runErr == nil:
		return "unknown"
	case errors.As(runErr, &timeout):
		return "timed out"
	case errors.Is(runErr, agent.ErrKilled):
		return "killed"
	}
	return "error"
}

func init() {
	runCmd.Flags().StringVarP(&runBackend, "backend", "b", "", "Agent backend: claude-code or gemini-cli")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use")
	runCmd.Flags().StringVarP(&runTools, "tools", "t", "", `Permitted tools in canonical names ("all", "none" or Read,Grep,...)`)
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "Wall-clock limit in seconds, must be positive (default: no limit)")
	runCmd.Flags().IntVar(&runKillGrace, "kill-grace", 0, "Seconds between SIGTERM and SIGKILL")
	runCmd.Flags().StringVarP(&runWorkingDir, "workdir", "C", "", "Directory to run the agent in")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Append raw output and lifecycle markers to this file")
	runCmd.Flags().BoolVar(&runFirstOutputMarkers, "first-output-markers", false, "Write a FIRST OUTPUT marker to the audit log")
	runCmd.Flags().StringVar(&runHooksFile, "hooks-file", "", "YAML file with pre/post execution hooks")
	runCmd.Flags().BoolVar(&runBlocking, "blocking", false, "Use non-streaming JSON output (gemini-cli only)")
	runCmd.Flags().StringVar(&runExecutable, "executable", "", "Agent executable (overrides the backend default)")
	runCmd.Flags().StringVarP(&runPromptFile, "prompt-file", "f", "", `Read the prompt from a file ("-" for stdin)`)
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "Extra environment for the agent (KEY=VALUE, repeatable)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the command that would run and exit")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON instead of streaming")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Print only the final output")

	runCmd.RegisterFlagCompletionFunc("backend", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return config.ValidBackends(), cobra.ShellCompDirectiveNoFileComp
	})
	runCmd.RegisterFlagCompletionFunc("tools", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return append([]string{"all", "none"}, tools.Known()...), cobra.ShellCompDirectiveNoFileComp
	})
}
