// Package receiver implements the local side of a pull transfer: file-list
// exchange, delta application, metadata apply, hard-link resolution, and
// the delete sweep (spec.md §4.7 "Local copy / receiver orchestration").
//
// Grounded on the teacher's internal/receiver (receiver.go, do.go,
// generatoruid.go, generatorsymlink.go): the Transfer struct shape, the
// pendingFile/atomic-rename pattern, the uid/gid/amRoot/inGroup ownership
// logic, and the renameio-backed symlink creation are all carried forward
// and generalized to the full metadata/hardlink/backup/delete-timing scope
// spec.md adds. The teacher's retrieval only included four files of a
// larger package (receiver.go, do.go, generatoruid.go, generatorsymlink.go
// reference a dozen unretrieved siblings: Transfer, File, newPendingFile,
// setPerms, recvToken, GenerateFiles); those are reconstructed here rather
// than left as dangling references, in the same idiom.
package receiver

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/bwlimit"
	"github.com/birsync/rsync/internal/filter"
	"github.com/birsync/rsync/internal/flist"
	"github.com/birsync/rsync/internal/log"
	"github.com/birsync/rsync/internal/rsyncerr"
	"github.com/birsync/rsync/internal/rsyncos"
	"github.com/birsync/rsync/internal/rsyncwire"
)

// File is the receiver's view of one file-list entry; an alias keeps this
// package's many rt.recvFile1(f *File)-shaped methods readable without
// forcing every caller to spell out the flist package.
type File = flist.File

// TransferOpts mirrors the teacher's receiver.TransferOpts, extended with
// the backup/reference-dir/delete-timing/hardlink/sparse knobs spec.md
// adds beyond the prototype's scope.
type TransferOpts struct {
	DryRun bool
	Server bool

	DeleteMode    bool
	DeleteTiming  DeleteTiming
	DeleteExcluded bool

	PreserveUid      bool
	PreserveGid      bool
	PreserveLinks    bool
	PreservePerms    bool
	PreserveDevices  bool
	PreserveSpecials bool
	PreserveTimes    bool
	PreserveHardLinks bool
	OmitDirTimes     bool
	OmitLinkTimes    bool

	InPlace      bool
	Sparse       bool
	PartialDir   string
	BackupDir    string
	BackupSuffix string

	// LinkDest, CompareDest and CopyDest name reference directories tried,
	// in that order (see ChooseBasis), before falling back to a basis-less
	// whole-file transfer
	// (spec.md §9's link-dest-before-fuzzy resolution).
	CompareDest []string
	CopyDest    []string
	LinkDest    []string
	Fuzzy       bool

	ChecksumAlgo string
	Verbose      bool
}

// DeleteTiming selects when the destination delete sweep runs relative to
// file transfer, per spec.md §4.7 "delete timing modes".
type DeleteTiming int

const (
	DeleteDuring DeleteTiming = iota
	DeleteBefore
	DeleteAfter
	DeleteDelay
)

// Transfer holds everything one receiving session needs, mirroring the
// teacher's Transfer struct (Logger, Opts, Dest, Env, Conn, Seed) with the
// hard-link tracker and rollback ledger spec.md's fuller scope requires.
type Transfer struct {
	Logger *log.Logger
	Opts   *TransferOpts

	Dest     string
	DestRoot *os.Root

	Env  rsyncos.Env
	Conn *rsyncwire.Conn
	Seed int32

	// Protocol is the negotiated protocol version for this session
	// (internal/session.NegotiatedVersion / NegotiateWire). It gates the
	// wire shape of the end-of-transfer exchange (spec.md §4.6): the
	// file-list timing fields of the stats only apply for protocol >= 29,
	// and the extra goodbye round-trip for protocol >= 31. Zero defaults to the newest protocol this
	// core speaks, matching callers constructed before this field existed.
	Protocol int

	// SeedFix is true when CHECKSUM_SEED_FIX was negotiated: the session
	// seed is then mixed into block rolling checksums, and must match what
	// the sender's matcher computes.
	SeedFix bool

	// Timeout is the session I/O timeout (--timeout); zero disables it.
	// Every chunk read off the wire both checks that the previous chunk
	// arrived within the timeout and advances lastProgress (spec.md §5
	// "Cancellation / timeout").
	Timeout      time.Duration
	lastProgress time.Time

	BW     *bwlimit.Limiter
	Filter *filter.Program // nil when no include/exclude rules were given

	hardlinks *hardlinkTracker
	created   []string // paths newly created this session, for rollback on fatal error
	IOErrors  int

	// MetadataErrors accumulates non-fatal ownership/mode/time apply
	// failures (spec.md §4.7 "Metadata apply": "Failures are collected
	// into a per-session error list and reported at the end; they do not
	// abort the transfer."). nil until the first failure.
	MetadataErrors *multierror.Error
}

// recordMetadataError appends err to the session's non-fatal metadata error
// list instead of propagating it as a fatal transfer error, per spec.md
// §4.7 and §7's "Metadata apply failure" taxonomy entry.
func (rt *Transfer) recordMetadataError(name string, err error) {
	if err == nil {
		return
	}
	rt.MetadataErrors = multierror.Append(rt.MetadataErrors, fmt.Errorf("%s: %w", name, err))
}

// NewTransfer opens dest (creating it and any missing parents if absent)
// and returns a ready-to-use Transfer.
func NewTransfer(logger *log.Logger, opts *TransferOpts, dest string, env rsyncos.Env, c *rsyncwire.Conn, seed int32) (*Transfer, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil && !os.IsExist(err) {
		return nil, err
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return nil, err
	}
	return &Transfer{
		Logger:    logger,
		Opts:      opts,
		Dest:      dest,
		DestRoot:  root,
		Env:       env,
		Conn:      c,
		Seed:      seed,
		hardlinks: newHardlinkTracker(),
	}, nil
}

// Close releases the destination root handle.
func (rt *Transfer) Close() error {
	if rt.DestRoot == nil {
		return nil
	}
	return rt.DestRoot.Close()
}

// protocol returns rt.Protocol, defaulting to this core's preferred
// version for callers constructed before negotiation was wired through.
func (rt *Transfer) protocol() int {
	if rt.Protocol == 0 {
		return rsync.ProtocolVersion
	}
	return rt.Protocol
}

// markProgress records that a chunk of transfer work completed.
func (rt *Transfer) markProgress() { rt.lastProgress = time.Now() }

// checkProgress fails the session with the canonical timeout exit code
// when no progress has been recorded within rt.Timeout.
func (rt *Transfer) checkProgress() error {
	if rt.Timeout <= 0 {
		return nil
	}
	if rt.lastProgress.IsZero() {
		rt.markProgress()
		return nil
	}
	if elapsed := time.Since(rt.lastProgress); elapsed > rt.Timeout {
		return rsyncerr.New(rsync.ExitTimeout, "io timeout after %v of inactivity", elapsed.Round(time.Second))
	}
	return nil
}

// wireReader wraps the session's wire reader with the per-chunk timeout
// check and bandwidth throttling for the bulk data path.
func (rt *Transfer) wireReader(r io.Reader) io.Reader {
	if rt.Timeout > 0 {
		r = &progressReader{rt: rt, r: r}
	}
	return rt.BW.Reader(r)
}

type progressReader struct {
	rt *Transfer
	r  io.Reader
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.rt.checkProgress(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.rt.markProgress()
	}
	return n, err
}

// recordCreated appends a newly created path to the rollback ledger.
func (rt *Transfer) recordCreated(path string) {
	rt.created = append(rt.created, path)
}

// Rollback removes every path recorded via recordCreated, in reverse
// order, used when a fatal error aborts the transfer partway through
// (spec.md §4.7 "rollback of newly-created entries on fatal error").
func (rt *Transfer) Rollback() {
	for i := len(rt.created) - 1; i >= 0; i-- {
		os.RemoveAll(rt.created[i])
	}
	rt.created = nil
}
