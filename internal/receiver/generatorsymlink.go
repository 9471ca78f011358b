//go:build linux || darwin

package receiver

import "github.com/google/renameio/v2"

// symlink replaces newname with a symlink to oldname atomically: the link
// is created under a temporary name in the same directory and renamed into
// place, so an existing destination is never observably absent.
func symlink(oldname, newname string) error {
	return renameio.Symlink(oldname, newname)
}
