//go:build windows

package agent

import (
	"os/exec"
)

// identity is unused on Windows; there is no privilege drop.
type identity struct{}

// setProcAttr sets Windows-specific process attributes.
// On Windows, process groups work differently and we rely on
// the standard process termination behavior.
func setProcAttr(cmd *exec.Cmd, id *identity) {
	// No special attributes needed on Windows
}

func lookupIdentity() *identity {
	return nil
}

func rewriteEnv(env []string, id *identity) []string {
	return env
}

func (id *identity) String() string { return "" }
