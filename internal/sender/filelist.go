package sender

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/birsync/rsync/internal/filter"
	"github.com/birsync/rsync/internal/flist"
)

// senderIDResolver is the identity Resolver used when no os/user-backed
// rsyncos.IDLookup is wired in: numeric ids are sent without a name,
// mirroring internal/receiver/filelist.go's receiverIDResolver.
type senderIDResolver struct{}

func (senderIDResolver) Name(id int32) (string, bool) { return "", false }

// dirFrame pairs a directory path with the DirectoryFilterGuard Enter
// returned for it, so the walk can Close guards in the right order as it
// backs out of a subtree (spec.md §4.5 "per-directory merge"), mirroring
// internal/receiver/walk.go's dirFrame for the delete-sweep walk.
type dirFrame struct {
	path  string
	guard *filter.DirectoryFilterGuard
}

// buildFileList walks root+paths and returns the sorted, deduplicated file
// list that sendFileList will transmit, applying both st.Filter and any
// legacy exclusion patterns received over the wire (spec.md §4.5
// "Evaluation order").
//
// Grounded on the tree-walk shape of internal/receiver/walk.go's
// walkLocal, generalized to also capture the metadata flist.File needs
// (mode, ownership, link targets, device numbers) instead of just a name.
func (st *Transfer) buildFileList(root string, paths []string, exclusionList *FilterList) ([]*flist.File, error) {
	var progs []*filter.Program
	if st.Filter != nil {
		progs = append(progs, st.Filter)
	}
	if exclusionList != nil && len(exclusionList.Filters) > 0 {
		rules := make([]filter.Rule, 0, len(exclusionList.Filters))
		for _, pattern := range exclusionList.Filters {
			rules = append(rules, filter.Rule{
				Sign:    filter.Exclude,
				Scope:   filter.Scope{Transfer: true, Deletion: true},
				Matcher: filter.CompilePattern(pattern),
			})
		}
		progs = append(progs, filter.NewProgram(rules))
	}
	excluded := func(name string, isDir bool) bool {
		for _, p := range progs {
			if p.Evaluate(name, isDir, filter.TransferContext) == filter.Exclude {
				return true
			}
		}
		return false
	}

	var files []*flist.File
	for _, p := range paths {
		abs := p
		if root != "" {
			abs = filepath.Join(root, p)
		}
		top, err := os.Lstat(abs)
		if err != nil {
			return nil, err
		}

		f, err := st.statToEntry(p, abs, top)
		if err != nil {
			return nil, err
		}
		f.IsTopLevel = true
		files = append(files, f)

		if !top.IsDir() {
			continue
		}

		var stack []dirFrame
		if st.Filter != nil {
			guard, err := st.Filter.Enter(abs, ".")
			if err != nil {
				return nil, err
			}
			stack = append(stack, dirFrame{path: abs, guard: guard})
		}
		closeStackTo := func(fsPath string) {
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if strings.HasPrefix(fsPath, top.path+string(filepath.Separator)) {
					break
				}
				top.guard.Close()
				stack = stack[:len(stack)-1]
			}
		}

		err = filepath.Walk(abs, func(fsPath string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fsPath == abs {
				return nil // already added above, root frame already pushed
			}

			if st.Filter != nil {
				closeStackTo(fsPath)
			}

			rel := strings.TrimPrefix(fsPath, abs+string(filepath.Separator))
			name := path.Join(filepath.ToSlash(p), filepath.ToSlash(rel))

			if excluded(name, info.IsDir()) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			entry, err := st.statToEntry(name, fsPath, info)
			if err != nil {
				return err
			}
			files = append(files, entry)

			if info.IsDir() && st.Filter != nil {
				guard, err := st.Filter.Enter(fsPath, info.Name())
				if err != nil {
					return err
				}
				stack = append(stack, dirFrame{path: fsPath, guard: guard})
			}
			return nil
		})
		for i := len(stack) - 1; i >= 0; i-- {
			stack[i].guard.Close()
		}
		if err != nil {
			return nil, err
		}
	}

	sorted := flist.SortAndClean(files)
	if st.Opts.PreserveHardLinks() {
		groupHardlinks(sorted)
	}
	return sorted, nil
}

// groupHardlinks scans files in final transmission order and assigns a
// shared HardlinkID to every (dev, ino) group with more than one member,
// per spec.md §4.4's hard-link preservation invariant. The first member
// encountered in list order keeps TypeRegular and carries the file's body;
// every later member becomes a TypeHardlinkRef with no body, matching
// sendFiles' decision (match.go) to skip the signature/token round trip
// for any non-regular entry. Grouping must run after sorting, since both
// this sender and the remote receiver (internal/receiver/generator.go's
// mirrored skip logic) determine "first vs. repeat" purely from an
// already-agreed-upon list order.
func groupHardlinks(files []*flist.File) {
	type key struct{ dev, ino uint64 }
	groups := make(map[key]int64)
	var nextID int64
	for _, f := range files {
		if f.Type != flist.TypeRegular || f.Nlink < 2 {
			continue
		}
		k := key{f.Dev, f.Ino}
		if id, seen := groups[k]; seen {
			f.Type = flist.TypeHardlinkRef
			f.HardlinkID = id
			continue
		}
		nextID++
		groups[k] = nextID
		f.HardlinkID = nextID
	}
}

// statToEntry converts one filesystem object into a flist.File, resolving
// symlink targets and device numbers the way the sender side needs to,
// mirroring the metadata internal/receiver/metadata.go later applies in
// reverse.
func (st *Transfer) statToEntry(name, fsPath string, info os.FileInfo) (*flist.File, error) {
	f := &flist.File{
		Name:  name,
		Size:  info.Size(),
		Mtime: info.ModTime().Unix(),
		Mode:  int32(info.Mode().Perm()),
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		f.Type = flist.TypeSymlink
		target, err := os.Readlink(fsPath)
		if err != nil {
			return nil, err
		}
		f.LinkTarget = target
		f.Size = 0
	case info.IsDir():
		f.Type = flist.TypeDirectory
	case info.Mode()&(os.ModeDevice|os.ModeCharDevice) != 0:
		f.Type = flist.TypeDevice
	case info.Mode()&(os.ModeNamedPipe|os.ModeSocket) != 0:
		f.Type = flist.TypeSpecial
	default:
		f.Type = flist.TypeRegular
	}

	if stt, ok := info.Sys().(*syscall.Stat_t); ok {
		f.UID = int32(stt.Uid)
		f.GID = int32(stt.Gid)
		if f.Type == flist.TypeDevice {
			f.DevMajor = int32((stt.Rdev >> 8) & 0xfff)
			f.DevMinor = int32(stt.Rdev & 0xff)
		}
		f.Dev = uint64(stt.Dev)
		f.Ino = stt.Ino
		f.Nlink = uint64(stt.Nlink)
	}

	return f, nil
}

// sendFileList transmits files via a fresh Codec, followed by the uid/gid
// id lists spec.md §4.4 requires when those attributes are preserved.
// sendFileList transmits the complete, already-sorted file list in a
// single pass. Per-directory incremental streaming (INC_RECURSE) is not
// implemented, which is why session.DefaultCompatFlags never asserts that
// bit: the compat intersection keeps peers on this whole-list exchange.
func (st *Transfer) sendFileList(files []*flist.File) error {
	cd := &flist.Codec{
		PreserveUID:       st.Opts.PreserveUid(),
		PreserveGID:       st.Opts.PreserveGid(),
		PreserveDevices:   st.Opts.PreserveDevices(),
		PreserveSpecials:  st.Opts.PreserveSpecials(),
		PreserveLinks:     st.Opts.PreserveLinks(),
		PreserveHardlinks: st.Opts.PreserveHardLinks(),
	}

	for _, f := range files {
		if err := cd.WriteEntry(st.Conn, f); err != nil {
			return fmt.Errorf("sending file list entry %q: %w", f.Name, err)
		}
	}
	if err := cd.WriteEnd(st.Conn); err != nil {
		return err
	}

	if st.Opts.PreserveUid() {
		if err := flist.WriteIDList(st.Conn, flist.CollectIDs(files, false), senderIDResolver{}, false); err != nil {
			return err
		}
	}
	if st.Opts.PreserveGid() {
		if err := flist.WriteIDList(st.Conn, flist.CollectIDs(files, true), senderIDResolver{}, false); err != nil {
			return err
		}
	}
	return nil
}
