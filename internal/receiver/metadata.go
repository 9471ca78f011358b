//go:build linux || darwin

package receiver

import (
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/birsync/rsync/internal/flist"
)

var amRoot = os.Getuid() == 0

// inGroup lists the gids the current process belongs to, used to decide
// whether a non-root process may chgrp to f.GID (spec.md: ownership
// changes a non-root receiver may legally make are limited to groups it is
// already a member of). Grounded verbatim on the teacher's
// generatoruid.go.
var inGroup = func() map[uint32]bool {
	m := make(map[uint32]bool)
	u, err := user.Current()
	if err != nil {
		return m
	}
	gids, err := u.GroupIds()
	if err != nil {
		return m
	}
	for _, gidString := range gids {
		gid64, err := strconv.ParseInt(gidString, 0, 64)
		if err != nil {
			return m
		}
		m[uint32(gid64)] = true
	}
	return m
}()

// applyMetadata applies ownership, then mode bits, then times, in that
// order, per spec.md §4.7 "Metadata apply": "Ownership is applied before
// mode bits (so setuid survives). Times are applied last." Failures are
// returned to the caller, who is responsible for collecting them into the
// session's non-fatal error list rather than aborting.
func (rt *Transfer) applyMetadata(f *File, local string) error {
	st, err := rt.DestRoot.Lstat(f.Name)
	if err != nil {
		return err
	}

	if rt.Opts.PreserveUid || rt.Opts.PreserveGid {
		st, err = rt.setOwner(f, local, st)
		if err != nil {
			return err
		}
	}

	if rt.Opts.PreservePerms && f.Type != flist.TypeSymlink {
		if err := os.Chmod(local, fs.FileMode(f.Mode).Perm()); err != nil {
			return err
		}
	}

	if !rt.Opts.PreserveTimes {
		return nil
	}
	if f.IsDir() && rt.Opts.OmitDirTimes {
		return nil
	}
	if f.Type == flist.TypeSymlink && rt.Opts.OmitLinkTimes {
		return nil
	}
	mtime := time.Unix(f.Mtime, 0)
	if f.Type == flist.TypeSymlink {
		return lchtimes(local, mtime)
	}
	return os.Chtimes(local, mtime, mtime)
}

// setOwner changes owner/group on local, mirroring the teacher's setUid:
// uid changes require root; gid changes require root or membership in the
// target group. Grounded on generatoruid.go's setUid.
func (rt *Transfer) setOwner(f *File, local string, st fs.FileInfo) (fs.FileInfo, error) {
	stt, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return st, nil
	}

	changeUid := rt.Opts.PreserveUid && amRoot && stt.Uid != uint32(f.UID)
	changeGid := rt.Opts.PreserveGid &&
		(amRoot || inGroup[uint32(f.GID)]) &&
		stt.Gid != uint32(f.GID)

	if !changeUid && !changeGid {
		return st, nil
	}

	uid := stt.Uid
	if changeUid {
		uid = uint32(f.UID)
	}
	gid := stt.Gid
	if changeGid {
		gid = uint32(f.GID)
	}
	if err := os.Lchown(local, int(uid), int(gid)); err != nil {
		return nil, err
	}
	return rt.DestRoot.Lstat(f.Name)
}

func lchtimes(path string, t time.Time) error {
	ts := syscall.NsecToTimespec(t.UnixNano())
	return syscall.UtimesNano(path, []syscall.Timespec{ts, ts})
}
