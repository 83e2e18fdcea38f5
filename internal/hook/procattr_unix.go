//go:build !windows

package hook

import (
	"os/exec"
	"syscall"

	"github.com/matt/agentexec/internal/process"
)

// killGroupOnCancel runs the hook shell in its own process group and kills
// the whole group when the context ends, so children holding the output
// pipes die with it.
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return process.ForceKillGroup(cmd.Process.Pid)
	}
}
