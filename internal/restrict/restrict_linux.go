// Package restrict confines the process's file system access to the
// directories a transfer actually needs, where the operating system
// provides an API for that (Landlock on Linux).
package restrict

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/landlock-lsm/go-landlock/landlock"
)

// ExtraHook is set when testing to make the landlock rule set more permissive.
var ExtraHook func() []landlock.Rule

// ambientRoDirs lists directories the process needs read access to beyond
// the transfer roots. /etc covers user/group lookup (/etc/passwd,
// /etc/group) and the Go resolver's DNS configuration (resolv.conf, hosts,
// services, nsswitch.conf). Because /etc/resolv.conf may be re-created by
// DHCP clients or VPN daemons, the whole directory is granted rather than
// individual files; with per-file rules, name resolution works at first
// and then fails once the file is replaced.
var ambientRoDirs = []string{
	"/etc",
	filepath.Join(os.Getenv("HOME"), ".ssh"), // ssh(1) config and keys
	"/etc/ssh",                               // system-wide ssh config
	"/usr",                                   // for running ssh(1)
}

var ambientRwFiles = []string{
	"/dev/null",
}

// MaybeFileSystem restricts the process to read access under roDirs and
// read-write access under rwDirs (plus the ambient paths above), using the
// strongest Landlock ABI the kernel offers. On kernels without Landlock
// this is a no-op.
func MaybeFileSystem(roDirs []string, rwDirs []string) error {
	extra := ExtraHook
	if extra == nil {
		extra = func() []landlock.Rule { return nil }
	}
	log.Printf("setting up landlock ACL (paths ro: %d, paths rw: %d)", len(roDirs), len(rwDirs))
	err := landlock.V3.BestEffort().RestrictPaths(
		append(extra(), []landlock.Rule{
			landlock.RODirs(ambientRoDirs...).IgnoreIfMissing(),
			landlock.RWFiles(ambientRwFiles...).IgnoreIfMissing(),
			landlock.RODirs(roDirs...).IgnoreIfMissing(),
			landlock.RWDirs(rwDirs...).WithRefer(),
		}...)...)
	if err != nil {
		return fmt.Errorf("landlock: %v", err)
	}
	return nil
}
