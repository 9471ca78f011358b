package receiver

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// pendingFile wraps the destination-write strategy: a renameio temp file
// by default, the same temp file staged inside PartialDir when that is set,
// or a direct in-place write when InPlace is set. A temp file is removed by
// Cleanup when the transfer fails, in either directory; nothing is kept
// for a later attempt to resume from. Grounded on the
// teacher's receiver.go use of "newPendingFile"/"out.CloseAtomicallyReplace"/
// "out.Cleanup" (referenced but not included in the retrieval), generalized
// to the partial-dir and in-place cases spec.md adds.
type pendingFile struct {
	final string

	pf       *renameio.PendingFile // nil when writing in place
	inplaceF *os.File              // non-nil when writing in place
}

// newPendingFile opens a write guard for final, choosing among in-place,
// partial-dir, and plain temp-file strategies.
func newPendingFile(final string, opts *TransferOpts) (*pendingFile, error) {
	if opts.InPlace {
		f, err := os.OpenFile(final, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, err
		}
		return &pendingFile{final: final, inplaceF: f}, nil
	}

	dir := filepath.Dir(final)
	if opts.PartialDir != "" {
		dir = filepath.Join(dir, opts.PartialDir)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	pf, err := renameio.NewPendingFile(final, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		return nil, err
	}
	return &pendingFile{final: final, pf: pf}, nil
}

func (p *pendingFile) Write(b []byte) (int, error) {
	if p.inplaceF != nil {
		return p.inplaceF.Write(b)
	}
	return p.pf.Write(b) // renameio.PendingFile embeds *os.File
}

func (p *pendingFile) CloseAtomicallyReplace() error {
	if p.inplaceF != nil {
		return p.inplaceF.Close()
	}
	return p.pf.CloseAtomicallyReplace()
}

func (p *pendingFile) Cleanup() error {
	if p.inplaceF != nil {
		return nil // nothing to discard; in-place writes already went into the final file
	}
	return p.pf.Cleanup()
}

// rawFile returns the underlying *os.File so callers can wrap it in a
// delta.SparseWriter, which needs Seek/Truncate and so cannot work through
// the plain io.Writer interface above.
func (p *pendingFile) rawFile() *os.File {
	if p.inplaceF != nil {
		return p.inplaceF
	}
	return p.pf.File
}
