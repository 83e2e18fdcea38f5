//go:build !windows

package agent

import (
	"fmt"
	"os/exec"
	"syscall"
)

// setProcAttr makes the command its own process group leader, so a kill
// reaches every process the agent spawns. When id is non-nil the child
// drops to that identity in its pre-exec step: the runtime applies groups,
// then gid, then uid, and the parent keeps its own privileges. Supplementary
// groups are always replaced, so an identity without groups clears them.
func setProcAttr(cmd *exec.Cmd, id *identity) {
	attr := &syscall.SysProcAttr{
		Setpgid: true,
	}
	if id != nil {
		attr.Credential = &syscall.Credential{
			Uid:    id.UID,
			Gid:    id.GID,
			Groups: append([]uint32{}, id.Groups...),
		}
	}
	cmd.SysProcAttr = attr
}

func lookupIdentity() *identity {
	return originalIdentity(systemIdentityEnv())
}

func (id *identity) String() string {
	return fmt.Sprintf("%s (uid %d, gid %d)", id.Name, id.UID, id.GID)
}
