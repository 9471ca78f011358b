package delta

import (
	"io"
	"os"
)

// SparseThreshold is the default minimum run of trailing zero bytes that
// gets converted into a hole via seek instead of being written out,
// matching spec.md §4.3 ("a configurable threshold (default 32 KiB)").
const SparseThreshold = 32 * 1024

// SparseWriter wraps an *os.File and, when enabled, turns long zero runs
// into holes by seeking past them instead of writing zero bytes. The
// caller must call Close to flush any pending zero run and truncate the
// file to the final size, materializing a trailing hole if the file ends
// in zeros.
//
// Corresponds to spec.md §4.3 "Sparse writes": not inplace, and enabled,
// bypassing zero runs of at least Threshold bytes.
type SparseWriter struct {
	f         *os.File
	Enabled   bool
	Threshold int

	offset    int64 // logical offset written so far
	pendingZ  int64 // length of the current run of trailing zero bytes not yet written
}

func NewSparseWriter(f *os.File, enabled bool) *SparseWriter {
	th := SparseThreshold
	return &SparseWriter{f: f, Enabled: enabled, Threshold: th}
}

// Write appends p to the output, detecting and holing out runs of zero
// bytes at least Threshold long.
func (w *SparseWriter) Write(p []byte) (int, error) {
	if !w.Enabled {
		n, err := w.f.Write(p)
		w.offset += int64(n)
		return n, err
	}

	total := len(p)
	for len(p) > 0 {
		if allZero(p) {
			w.pendingZ += int64(len(p))
			p = nil
			break
		}
		// Find the first non-zero byte to decide how much of this chunk
		// is zero-prefix (continuing any pending run) vs. needs flushing.
		firstNonZero := zeroPrefixLen(p)
		if firstNonZero > 0 {
			w.pendingZ += int64(firstNonZero)
			p = p[firstNonZero:]
			continue
		}
		// p[0] != 0: flush any pending zero run, then write the non-zero
		// prefix of p in one go.
		if err := w.flushZeros(); err != nil {
			return 0, err
		}
		nz := nonZeroPrefixLen(p)
		n, err := w.f.Write(p[:nz])
		w.offset += int64(n)
		if err != nil {
			return 0, err
		}
		p = p[nz:]
	}
	return total, nil
}

func (w *SparseWriter) flushZeros() error {
	if w.pendingZ == 0 {
		return nil
	}
	if w.pendingZ >= int64(w.Threshold) {
		if _, err := w.f.Seek(w.pendingZ, io.SeekCurrent); err != nil {
			return err
		}
		w.offset += w.pendingZ
		w.pendingZ = 0
		return nil
	}
	buf := make([]byte, w.pendingZ)
	n, err := w.f.Write(buf)
	w.offset += int64(n)
	w.pendingZ = 0
	return err
}

// Close flushes any pending zero run (holing it out if long enough,
// otherwise materializing zero bytes) and truncates the file to the final
// logical size, producing a trailing hole when the file ends in zeros.
func (w *SparseWriter) Close() error {
	if !w.Enabled {
		return nil
	}
	final := w.offset + w.pendingZ
	if err := w.flushZeros(); err != nil {
		return err
	}
	return w.f.Truncate(final)
}

func allZero(p []byte) bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}

func nonZeroPrefixLen(p []byte) int {
	for i, b := range p {
		if b == 0 {
			return i
		}
	}
	return len(p)
}

func zeroPrefixLen(p []byte) int {
	for i, b := range p {
		if b != 0 {
			return i
		}
	}
	return len(p)
}
