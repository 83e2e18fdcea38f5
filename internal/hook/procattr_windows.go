//go:build windows

package hook

import "os/exec"

// killGroupOnCancel keeps the default cancel (kill the shell); WaitDelay
// bounds the wait for any children still holding the pipes.
func killGroupOnCancel(cmd *exec.Cmd) {}
