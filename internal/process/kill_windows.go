//go:build windows

package process

import (
	"errors"
	"os"
)

// Terminate terminates a process on Windows.
func Terminate(pid int) error {
	if pid == 0 {
		return ErrInvalidPID
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ForceKill immediately terminates a process on Windows.
// On Windows, this is the same as Terminate since there's no graceful termination signal.
func ForceKill(pid int) error {
	return Terminate(pid)
}

// TerminateGroup falls back to terminating the leader; Windows has no
// POSIX process groups.
func TerminateGroup(pgid int) error {
	return Terminate(pgid)
}

// ForceKillGroup is TerminateGroup on Windows.
func ForceKillGroup(pgid int) error {
	return Terminate(pgid)
}

// Alive reports whether the process can still be found. A negative pid
// names a group, which on Windows is its leader.
func Alive(pid int) bool {
	if pid < 0 {
		pid = -pid
	}
	if pid == 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}

// GroupOf returns pid itself on Windows.
func GroupOf(pid int) (int, error) {
	return pid, nil
}
