package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matt/agentexec/internal/agent"
	"github.com/matt/agentexec/internal/tools"
)

var toolsBackend string

var toolsCmd = &cobra.Command{
	Use:   "tools [canonical-name...]",
	Short: "Show how tool names are translated per backend",
	Long: `Show the canonical tool names and what each backend calls them.

With arguments, translate the given canonical names. Names missing from the
table are derived (snake_case for gemini-cli, unchanged for claude-code)
and marked as derived.`,
	Example: `  # Full translation table
  agentexec tools

  # Translate specific names for gemini-cli
  agentexec tools -b gemini-cli Read Bash NotebookEdit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		bold := color.New(color.Bold)
		dim := color.New(color.Faint)

		names := args
		if len(names) == 0 {
			names = tools.Known()
		}

		if toolsBackend == "" {
			bold.Fprintf(w, "%-12s %-14s %s\n", "CANONICAL", "CLAUDE-CODE", "GEMINI-CLI")
			for _, name := range names {
				text := tools.Translate(tools.DialectText, name)
				js := tools.Translate(tools.DialectJSON, name)
				line := fmt.Sprintf("%-12s %-14s %s", name, text.Name, js.Name)
				if js.BestEffort {
					line += dim.Sprint("  (derived)")
				}
				fmt.Fprintln(w, line)
			}
			return nil
		}

		variant, err := agent.ParseVariant(toolsBackend)
		if err != nil {
			return err
		}
		backend, err := agent.BackendFor(variant)
		if err != nil {
			return err
		}
		for _, name := range names {
			m := tools.Translate(backend.Dialect(), name)
			line := fmt.Sprintf("%-12s -> %s", m.Canonical, m.Name)
			if m.BestEffort {
				line += dim.Sprint("  (derived)")
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

func init() {
	toolsCmd.Flags().StringVarP(&toolsBackend, "backend", "b", "", "Only show names for this backend")
}
