package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/agentexec/internal/logparser"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <audit-log>",
	Short: "Summarize the runs recorded in an audit log",
	Long: `Summarize every agent run recorded in an audit log: PID, outcome, exit
code, duration, time to first output, line counts and, for gemini-cli
runs, tool calls and token usage.`,
	Example: `  # Summarize a log
  agentexec inspect agent.log

  # Output as JSON
  agentexec inspect agent.log --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer f.Close()

		runs, err := logparser.ScanAuditLog(f)
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}

		// JSON format output
		if inspectFormat == "json" {
			out, err := json.MarshalIndent(runs, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal runs to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}
		for i, run := range runs {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			printRun(cmd.OutOrStdout(), i+1, run)
		}
		return nil
	},
}

func printRun(w io.Writer, n int, run logparser.AuditRun) {
	bold := color.New(color.Bold)

	bold.Fprintf(w, "Run %d\n", n)
	fmt.Fprintln(w, "─────────────────────────────────")
	fmt.Fprintf(w, "PID:           %d\n", run.PID)

	statusColor := color.New(color.FgWhite)
	switch run.Outcome {
	case logparser.OutcomeCompleted:
		statusColor = color.New(color.FgGreen)
		if run.ExitCode != 0 {
			statusColor = color.New(color.FgYellow)
		}
	case logparser.OutcomeTimeout, logparser.OutcomeKilled:
		statusColor = color.New(color.FgRed)
	}
	fmt.Fprint(w, "Outcome:       ")
	statusColor.Fprintln(w, string(run.Outcome))

	if run.Outcome == logparser.OutcomeCompleted {
		fmt.Fprintf(w, "Exit code:     %d\n", run.ExitCode)
	}
	if run.Outcome == logparser.OutcomeTimeout {
		fmt.Fprintf(w, "Timeout:       %s\n", run.Timeout)
	}
	if run.Outcome != logparser.OutcomeRunning {
		fmt.Fprintf(w, "Duration:      %s\n", run.Duration.Round(100*time.Millisecond))
	}
	if run.FirstOutput != nil {
		fmt.Fprintf(w, "First output:  %s\n", run.FirstOutput.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Output lines:  %d\n", run.StdoutLines)
	fmt.Fprintf(w, "Stderr lines:  %d\n", run.StderrLines)
	if run.ToolUses > 0 {
		fmt.Fprintf(w, "Tool calls:    %d\n", run.ToolUses)
	}
	if run.InputTokens > 0 || run.OutputTokens > 0 {
		fmt.Fprintf(w, "Tokens:        %d in / %d out\n", run.InputTokens, run.OutputTokens)
	}
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "", "Output format: json or text (default)")
}
