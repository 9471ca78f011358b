package receiver

import (
	"os"
	"path/filepath"
)

// BasisKind classifies how a reference-directory candidate resolved the
// transfer of one file, per spec.md §4.7 "Backup and reference
// directories".
type BasisKind int

const (
	BasisNone    BasisKind = iota // no usable candidate; transfer against an empty/absent basis
	BasisCompare                  // candidate matches; skip the transfer entirely
	BasisCopy                    // candidate differs from destination but is a valid delta basis; copy path into place
	BasisLink                    // candidate is identical; hard-link instead of transferring
)

// BasisDecision names the file chosen from LinkDest/CompareDest/CopyDest
// (tried in that order; the first match wins) and what to do with it.
type BasisDecision struct {
	Kind BasisKind
	Path string
}

// ChooseBasis tries each reference directory in turn for f, preferring
// link-dest and falling back to compare-dest/copy-dest, per spec.md's
// `compare-dest`/`copy-dest`/`link-dest` description. match decides whether
// a found candidate is considered identical to f (size/time/checksum per
// the session's size_only/checksum/modify_window settings); callers
// typically pass a closure wrapping os.Stat plus a checksum comparison.
func ChooseBasis(name string, f *File, opts *TransferOpts, match func(candidatePath string, f *File) (identical bool)) BasisDecision {
	for _, dir := range opts.LinkDest {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if match(p, f) {
			return BasisDecision{Kind: BasisLink, Path: p}
		}
	}
	for _, dir := range opts.CompareDest {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if match(p, f) {
			return BasisDecision{Kind: BasisCompare, Path: p}
		}
	}
	for _, dir := range opts.CopyDest {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return BasisDecision{Kind: BasisCopy, Path: p}
		}
	}
	return BasisDecision{Kind: BasisNone}
}

// backupExisting renames the current destination file to its backup
// location before it is overwritten, per spec.md "optionally rename the
// existing destination to a backup path (suffix or backup-dir)".
func backupExisting(destRoot, name string, opts *TransferOpts) error {
	if opts.BackupDir == "" && opts.BackupSuffix == "" {
		return nil
	}
	orig := filepath.Join(destRoot, name)
	if _, err := os.Lstat(orig); err != nil {
		return nil // nothing to back up
	}

	var backupPath string
	if opts.BackupDir != "" {
		backupPath = filepath.Join(opts.BackupDir, name)
		if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
			return err
		}
	} else {
		backupPath = orig + opts.BackupSuffix
	}
	return os.Rename(orig, backupPath)
}
