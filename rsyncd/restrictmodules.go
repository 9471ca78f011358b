package rsyncd

import (
	"fmt"
	"os"

	"github.com/birsync/rsync/internal/restrict"
)

// restrictToModules confines the daemon's file system access to its
// configured module roots: writable modules get read-write rules (and are
// created up front so the rule has a path to bind to), read-only modules
// get read rules.
func restrictToModules(modules []Module) error {
	var roDirs, rwDirs []string
	for _, mod := range modules {
		if mod.Writable {
			if err := os.MkdirAll(mod.Path, 0755); err != nil {
				return fmt.Errorf("MkdirAll(mod=%s): %v", mod.Name, err)
			}
			rwDirs = append(rwDirs, mod.Path)
		} else {
			roDirs = append(roDirs, mod.Path)
		}
	}
	return restrict.MaybeFileSystem(roDirs, rwDirs)
}
