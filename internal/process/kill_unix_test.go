//go:build !windows

package process

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGroupLeader(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = ForceKillGroup(cmd.Process.Pid)
		_ = cmd.Wait()
	})
	return cmd
}

func TestTerminateGroupStopsChildren(t *testing.T) {
	cmd := startGroupLeader(t, "sleep 30 & sleep 30; wait")
	pgid, err := GroupOf(cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pgid)

	require.NoError(t, TerminateGroup(pgid))

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process group did not exit after SIGTERM")
	}

	assert.Eventually(t, func() bool { return !Alive(-pgid) }, 5*time.Second, 20*time.Millisecond)
}

func TestSignalMissingProcessIsSuccess(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	pid := cmd.Process.Pid

	// The pid has been reaped; ESRCH must not surface as an error.
	assert.NoError(t, Terminate(pid))
	assert.NoError(t, ForceKill(pid))
	assert.NoError(t, TerminateGroup(pid))
	assert.NoError(t, ForceKillGroup(pid))
	assert.False(t, Alive(pid))
}

func TestInvalidPID(t *testing.T) {
	assert.ErrorIs(t, Terminate(0), ErrInvalidPID)
	assert.ErrorIs(t, TerminateGroup(0), ErrInvalidPID)
	assert.False(t, Alive(0))
}
