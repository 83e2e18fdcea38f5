package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matt/agentexec/internal/config"
	"github.com/matt/agentexec/internal/version"
)

// appConfig holds the loaded configuration (global + project merged, or --config)
var appConfig *config.Config

// logger is the engine logger; a no-op unless --verbose is set
var logger = zap.NewNop()

var (
	verboseFlag    bool
	configFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "agentexec",
	Short: "Run AI coding agent CLIs as supervised child processes",
	Long: `agentexec drives AI coding agent CLIs (Claude Code, Gemini CLI) as child
processes and turns their output into one normalized result.

It handles:
  - Building the agent command line, including tool permissions
  - Streaming and decoding agent output as it is produced
  - Timeouts, kills and process group cleanup
  - An append-only audit log with lifecycle markers`,
	Example: `  # Ask Claude Code a question
  agentexec run "Explain the main package"

  # Use Gemini CLI with only read-only tools and a 5 minute timeout
  agentexec run -b gemini-cli -t Read,Grep,Glob --timeout 300 -f task.md

  # Show the command that would be executed
  agentexec run --dry-run "hello"

  # Summarize an audit log
  agentexec inspect agent.log`,
	Version:       version.GetInfo().Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verboseFlag {
			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			logger = l
		}

		// Skip config loading for config subcommand (it handles its own loading)
		if cmd.Name() == "config" || (cmd.Parent() != nil && cmd.Parent().Name() == "config") {
			return nil
		}

		var err error
		if configFileFlag != "" {
			appConfig, err = config.LoadFile(configFileFlag)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// exitCodeError carries the agent's exit code out of a command.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("agent exited with code %d", e.code)
}

// ExitCode maps an Execute error to the process exit status: the agent's
// own code when it exited non-zero, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) && ec.code > 0 {
		return ec.code
	}
	return 1
}

// IsSilent reports whether err has already been shown to the user.
func IsSilent(err error) bool {
	var ec *exitCodeError
	return errors.As(err, &ec)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log engine diagnostics to stderr")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "Use this config file instead of the global and project files")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}
