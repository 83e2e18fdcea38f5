package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matt/agentexec/internal/config"
)

var (
	configGlobal  bool
	configForce   bool
	configBackend string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage agentexec configuration",
	Long:  `View and manage agentexec configuration files.`,
	Example: `  # Show current configuration
  agentexec config show

  # Create a project config for Gemini CLI
  agentexec config init --backend gemini-cli

  # Switch the project to claude-code
  agentexec config set-backend claude-code`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the merged configuration",
	Long:  `Display the effective configuration after merging global and project configs.`,
	Example: `  # Show effective configuration
  agentexec config show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigForCommand()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out, err := cfg.ToTOML()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "# Effective configuration (merged from all sources)")
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file locations",
	Long:  `Display the paths to global and project configuration files.`,
	Example: `  # Show config file paths
  agentexec config path`,
	RunE: func(cmd *cobra.Command, args []string) error {
		globalPath, err := config.GlobalConfigPath()
		if err != nil {
			globalPath = fmt.Sprintf("<error: %v>", err)
		}

		projectPath := config.ProjectConfigPath()

		// Check existence
		globalExists := "not found"
		if _, err := os.Stat(globalPath); err == nil {
			globalExists = "exists"
		}

		projectExists := "not found"
		if _, err := os.Stat(projectPath); err == nil {
			projectExists = "exists"
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Configuration file locations:")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Global:  %s (%s)\n", globalPath, globalExists)
		fmt.Fprintf(w, "  Project: %s (%s)\n", projectPath, projectExists)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Priority: CLI flags > project config > global config > defaults")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the preset for a backend",
	Long: `Write a config file containing every setting with the preset values of
the chosen backend. By default writes the project config (.agentexec.toml).
Use --global to write the global config instead.`,
	Example: `  # Project config for claude-code
  agentexec config init

  # Global config for gemini-cli
  agentexec config init --backend gemini-cli --global`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := targetConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}

		cfg := config.DefaultConfig()
		if configBackend != "" {
			if err := cfg.SetBackend(configBackend); err != nil {
				return err
			}
		}
		if err := writeConfig(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s config: %s\n", cfg.Backend, configPath)
		return nil
	},
}

var configSetBackendCmd = &cobra.Command{
	Use:   "set-backend [claude-code|gemini-cli]",
	Short: "Switch the agent backend",
	Long: `Switch between agent CLI backends.

Available backends:
  claude-code - Anthropic's Claude Code CLI (plain text output)
  gemini-cli  - Google's Gemini CLI (line-delimited JSON output)

This command updates the config file with the preset for the chosen backend,
keeping settings that do not depend on the backend. By default, updates the
project config (.agentexec.toml). Use --global to update the global config.`,
	Example: `  # Use Gemini CLI
  agentexec config set-backend gemini-cli

  # Update global config instead of project
  agentexec config set-backend claude-code --global`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.ValidBackends(),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := strings.ToLower(args[0])

		configPath, err := targetConfigPath()
		if err != nil {
			return err
		}

		// Load existing file or start with defaults
		cfg := config.DefaultConfig()
		if _, err := os.Stat(configPath); err == nil {
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to load existing config: %w", err)
			}
		}

		if err := cfg.SetBackend(backend); err != nil {
			return err
		}
		if err := writeConfig(configPath, cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Backend switched to %q\n", cfg.Backend)
		fmt.Fprintf(cmd.OutOrStdout(), "Updated config: %s\n", configPath)
		return nil
	},
}

func loadConfigForCommand() (*config.Config, error) {
	if configFileFlag != "" {
		return config.LoadFile(configFileFlag)
	}
	return config.Load()
}

func targetConfigPath() (string, error) {
	if configFileFlag != "" {
		return configFileFlag, nil
	}
	if configGlobal {
		path, err := config.GlobalConfigPath()
		if err != nil {
			return "", fmt.Errorf("failed to determine global config path: %w", err)
		}
		return path, nil
	}
	return config.ProjectConfigPath(), nil
}

func writeConfig(path string, cfg *config.Config) error {
	out, err := cfg.ToTOML()
	if err != nil {
		return err
	}

	// Create parent directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetBackendCmd)

	configCmd.PersistentFlags().BoolVarP(&configGlobal, "global", "g", false, "Use the global config instead of the project config")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configInitCmd.Flags().StringVarP(&configBackend, "backend", "b", "", "Backend preset to write (default claude-code)")
}
