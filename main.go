package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/matt/agentexec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !cmd.IsSilent(err) {
			fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
