//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Terminate sends SIGTERM to a single process.
// A process that no longer exists is treated as already terminated.
func Terminate(pid int) error {
	return signal(pid, unix.SIGTERM)
}

// ForceKill sends SIGKILL to immediately terminate a process without allowing cleanup.
func ForceKill(pid int) error {
	return signal(pid, unix.SIGKILL)
}

// TerminateGroup sends SIGTERM to every process in the group led by pgid.
func TerminateGroup(pgid int) error {
	return signal(-pgid, unix.SIGTERM)
}

// ForceKillGroup sends SIGKILL to every process in the group led by pgid.
func ForceKillGroup(pgid int) error {
	return signal(-pgid, unix.SIGKILL)
}

// Alive reports whether a process (pid > 0) or group (pid < 0) still exists.
// EPERM means it exists but belongs to someone else.
func Alive(pid int) bool {
	if pid == 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// GroupOf returns the process group id of pid.
func GroupOf(pid int) (int, error) {
	return unix.Getpgid(pid)
}

func signal(pid int, sig unix.Signal) error {
	if pid == 0 {
		return ErrInvalidPID
	}
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}
