//go:build !windows

package agent

import (
	"os"
	"os/user"
	"strconv"
	"strings"
)

// identity is the unprivileged user an elevated caller originally was.
type identity struct {
	UID    uint32
	GID    uint32
	Groups []uint32
	Name   string
	Home   string
}

// identityEnv abstracts the process lookups so the detection logic is testable.
type identityEnv struct {
	geteuid    func() int
	getenv     func(string) string
	lookupUser func(uid string) (*user.User, error)
}

func systemIdentityEnv() identityEnv {
	return identityEnv{
		geteuid:    os.Geteuid,
		getenv:     os.Getenv,
		lookupUser: user.LookupId,
	}
}

// originalIdentity recovers the identity to drop to when running as root
// under sudo or pkexec. It returns nil when not elevated or when no
// non-root original identity can be recovered.
func originalIdentity(env identityEnv) *identity {
	if env.geteuid() != 0 {
		return nil
	}

	uidStr := env.getenv("SUDO_UID")
	gidStr := env.getenv("SUDO_GID")
	if uidStr == "" {
		uidStr = env.getenv("PKEXEC_UID")
		gidStr = ""
	}
	if uidStr == "" {
		return nil
	}
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil || uid == 0 {
		return nil
	}

	id := &identity{UID: uint32(uid)}
	u, lookupErr := env.lookupUser(uidStr)
	if lookupErr == nil {
		id.Name = u.Username
		id.Home = u.HomeDir
		if gidStr == "" {
			gidStr = u.Gid
		}
		if groups, err := u.GroupIds(); err == nil {
			for _, g := range groups {
				if n, err := strconv.ParseUint(g, 10, 32); err == nil {
					id.Groups = append(id.Groups, uint32(n))
				}
			}
		}
	}
	if id.Name == "" {
		id.Name = env.getenv("SUDO_USER")
	}

	gid, err := strconv.ParseUint(gidStr, 10, 32)
	if err != nil {
		return nil
	}
	id.GID = uint32(gid)
	return id
}

// rewriteEnv points HOME, USER and LOGNAME at id, dropping any previous values.
func rewriteEnv(env []string, id *identity) []string {
	out := make([]string, 0, len(env)+3)
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		switch key {
		case "HOME", "USER", "LOGNAME":
			continue
		}
		out = append(out, kv)
	}
	if id.Home != "" {
		out = append(out, "HOME="+id.Home)
	}
	if id.Name != "" {
		out = append(out, "USER="+id.Name, "LOGNAME="+id.Name)
	}
	return out
}
