package receiver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/birsync/rsync/internal/filter"
)

// localEntry is one entry discovered by walkLocal, shaped like flist.File's
// bare minimum for deletion-sweep comparison.
type localEntry struct {
	Name  string
	IsDir bool
}

// dirFrame pairs a directory path with the DirectoryFilterGuard Enter
// returned for it, so the walk can Close guards in the right order as it
// backs out of a subtree (spec.md §4.5 "per-directory merge").
type dirFrame struct {
	path  string
	guard *filter.DirectoryFilterGuard
}

// walkLocal performs the lexicographic depth-first destination walk used
// by the delete sweep (spec.md §4.7's tree walker, generalized from the
// teacher's filepath.Walk-based deleteFiles to add filter and
// one-file-system support). rootDev is the st_dev of root, used to refuse
// crossing device boundaries when oneFileSystem is set.
//
// prog's per-directory merge stack is pushed via Enter as the walk
// descends into each directory (root included) and popped via the guard's
// Close as the walk backs out, per spec.md §4.5: "Per-directory merge
// rules push ephemeral or inheritable segments onto a stack as the walker
// enters a directory; a DirectoryFilterGuard pops them on exit."
func walkLocal(root string, prog *filter.Program, oneFileSystem bool) ([]localEntry, error) {
	var rootDev uint64
	if oneFileSystem {
		st, err := os.Lstat(root)
		if err != nil {
			return nil, err
		}
		if stt, ok := st.Sys().(*syscall.Stat_t); ok {
			rootDev = uint64(stt.Dev)
		}
	}

	clean := filepath.Clean(root)
	strip := clean + string(filepath.Separator)

	var stack []dirFrame
	if prog != nil {
		guard, err := prog.Enter(clean, ".")
		if err != nil {
			return nil, err
		}
		stack = append(stack, dirFrame{path: clean, guard: guard})
	}
	closeStackTo := func(path string) {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if strings.HasPrefix(path, top.path+string(filepath.Separator)) {
				break
			}
			top.guard.Close()
			stack = stack[:len(stack)-1]
		}
	}

	var entries []localEntry
	err := filepath.Walk(clean, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := strings.TrimPrefix(path, strip)
		if path == clean {
			name = "."
			entries = append(entries, localEntry{Name: name, IsDir: info.IsDir()})
			return nil // the root frame was already pushed above
		}

		if prog != nil {
			closeStackTo(path)
		}

		if oneFileSystem && info.IsDir() {
			if stt, ok := info.Sys().(*syscall.Stat_t); ok && uint64(stt.Dev) != rootDev {
				return filepath.SkipDir
			}
		}

		if prog != nil {
			if prog.Evaluate(name, info.IsDir(), filter.DeletionContext) == filter.Exclude {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		entries = append(entries, localEntry{Name: name, IsDir: info.IsDir()})

		if info.IsDir() && prog != nil {
			guard, err := prog.Enter(path, name)
			if err != nil {
				return err
			}
			stack = append(stack, dirFrame{path: path, guard: guard})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].guard.Close()
	}

	// filepath.Walk already visits in lexicographic order per directory,
	// but re-sort defensively since deletion-order matters for matching
	// against the sorted remote file list.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
