//go:build !linux && !darwin

package receiver

import "os"

// symlink replaces newname with a symlink to oldname. Without renameio
// support on this platform the replacement is remove-then-create, so a
// brief window without the destination is possible.
func symlink(oldname, newname string) error {
	if err := os.Remove(newname); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(oldname, newname)
}
