//go:build linux && !nonamespacing

package maincmd

import (
	"fmt"
	"syscall"

	"github.com/birsync/rsync/internal/rsyncos"
)

// dropPrivileges switches a daemon started as root to the nobody uid/gid
// before any module data is touched, then verifies the drop is
// irreversible.
func dropPrivileges(osenv *rsyncos.Env) error {
	if syscall.Getuid() != 0 {
		return nil
	}

	osenv.Logf("running as root (uid 0), dropping privileges to nobody (uid/gid 65534)")
	if err := syscall.Setgid(65534); err != nil {
		return fmt.Errorf("setgid(65534): %v", err)
	}

	if err := syscall.Setuid(65534); err != nil {
		return fmt.Errorf("setuid(65534): %v", err)
	}

	if err := syscall.Setgid(0); err == nil {
		return fmt.Errorf("still able to regain gid 0 after dropping privileges")
	}

	if err := syscall.Setuid(0); err == nil {
		return fmt.Errorf("still able to regain uid 0 after dropping privileges")
	}

	return nil
}
