package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matt/agentexec/internal/process"
)

var (
	killGrace     time.Duration
	killNoGroup   bool
	killImmediate bool
)

var killCmd = &cobra.Command{
	Use:   "kill <pid>",
	Short: "Terminate an agent and every process it started",
	Long: `Terminate an agent process group from outside the run that started it.

agentexec starts every agent as the leader of its own process group, so the
agent's PID is also its group ID. The group receives SIGTERM; processes that
are still alive after the grace period receive SIGKILL.

Use --no-group to signal only the given process.`,
	Example: `  # Terminate an agent and its children, 5s grace
  agentexec kill 48213

  # Shorter grace period
  agentexec kill 48213 --grace 1s

  # SIGKILL right away
  agentexec kill 48213 --immediate`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil || pid <= 0 {
			return fmt.Errorf("invalid pid %q", args[0])
		}

		terminate, forceKill, target := process.TerminateGroup, process.ForceKillGroup, -pid
		if killNoGroup {
			terminate, forceKill, target = process.Terminate, process.ForceKill, pid
		}

		if !process.Alive(target) {
			return fmt.Errorf("no process found for %d", pid)
		}

		if killImmediate {
			if err := forceKill(pid); err != nil {
				return fmt.Errorf("failed to kill %d: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGKILL to %d\n", pid)
			return nil
		}

		if err := terminate(pid); err != nil {
			return fmt.Errorf("failed to terminate %d: %w", pid, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to %d\n", pid)

		deadline := time.Now().Add(killGrace)
		for time.Now().Before(deadline) {
			if !process.Alive(target) {
				fmt.Fprintf(cmd.OutOrStdout(), "Process %d exited\n", pid)
				return nil
			}
			time.Sleep(50 * time.Millisecond)
		}

		if err := forceKill(pid); err != nil {
			return fmt.Errorf("failed to kill %d: %w", pid, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Process %d ignored SIGTERM, sent SIGKILL\n", pid)
		return nil
	},
}

func init() {
	killCmd.Flags().DurationVar(&killGrace, "grace", 5*time.Second, "Time to wait between SIGTERM and SIGKILL")
	killCmd.Flags().BoolVar(&killNoGroup, "no-group", false, "Signal only the process, not its group")
	killCmd.Flags().BoolVar(&killImmediate, "immediate", false, "Send SIGKILL without a grace period")
}
