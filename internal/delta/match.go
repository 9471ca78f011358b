package delta

import (
	"io"

	"github.com/birsync/rsync/internal/rsyncchecksum"
	"github.com/birsync/rsync/internal/signature"
)

// Match scans newData against the receiver's signature index and writes the
// resulting token stream to tw, following the sender-side algorithm of
// spec.md §4.3 steps 1-6:
//
//  1. (index already built by the caller, shared across the whole file)
//  2. slide a window of length idx.Head().BlockLength, rolling the checksum
//     in O(1) from the previous position;
//  3. on a rolling-checksum hit, verify with the strong digest over the
//     exact window bytes;
//  4. on a verified match, flush any pending literal run then emit a block
//     reference, advancing by the block length;
//  5. on a miss, advance by one byte, growing the pending literal run;
//  6. at EOF, flush the trailing literal, emit the terminator, then the
//     whole-file strong checksum.
//
// Literals and references are emitted strictly in ascending file-offset
// order, matching the sequential scan. seedFix must match the value the
// signature was generated with, or no window ever hashes to a basis
// block's rolling checksum.
func Match(newData io.Reader, idx *signature.Index, seed int32, algo string, tw *TokenWriter, seedFix bool) error {
	head := idx.Head()
	blockLen := int(head.BlockLength)
	if blockLen <= 0 || head.ChecksumCount == 0 {
		return matchWhole(newData, seed, algo, tw)
	}

	fileHash, err := rsyncchecksum.New(algo, seed)
	if err != nil {
		return err
	}

	window := make([]byte, 0, blockLen)
	var literal []byte

	flushLiteral := func() error {
		if len(literal) == 0 {
			return nil
		}
		if err := tw.Literal(literal); err != nil {
			return err
		}
		literal = nil
		return nil
	}

	// fill reads up to blockLen bytes to (re)establish a full window after
	// a match or at start-of-file; it may return a short read at EOF. It
	// also (re)seeds the rolling checksum from scratch, since a match jumps
	// the window forward by a full block rather than sliding by one byte.
	var roll rsyncchecksum.Rolling
	fill := func() ([]byte, error) {
		buf := make([]byte, blockLen)
		n, err := io.ReadFull(newData, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		buf = buf[:n]
		roll.Reset()
		roll.Update(buf)
		return buf, nil
	}

	window, err = fill()
	if err != nil {
		return err
	}

	for len(window) > 0 {
		rv := roll.Value()
		if seedFix && seed != 0 {
			rv = roll.SeededValue(seed)
		}

		matched := int32(-1)
		if len(window) == blockLen {
			for _, cand := range idx.Candidates(rv) {
				blk := idx.Block(cand)
				strong, err := rsyncchecksum.Sum(algo, seed, window)
				if err != nil {
					return err
				}
				if bytesHavePrefix(strong, blk.Strong) {
					matched = cand
					break
				}
			}
		}

		if matched >= 0 {
			if err := flushLiteral(); err != nil {
				return err
			}
			if err := tw.BlockRef(matched); err != nil {
				return err
			}
			fileHash.Write(window)
			window, err = fill()
			if err != nil {
				return err
			}
			continue
		}

		// Miss: the first byte of the window joins the literal run; slide
		// by one byte, rolling the checksum in O(1) rather than
		// recomputing it from scratch over the whole window.
		literal = append(literal, window[0])
		fileHash.Write(window[:1])
		var next [1]byte
		n, rerr := newData.Read(next[:])
		if rerr != nil && rerr != io.EOF {
			return rerr
		}
		out := window[0]
		if n == 1 {
			window = append(window[1:], next[0])
			roll.Roll(out, next[0])
		} else {
			// Approaching EOF: the window shrinks rather than staying at a
			// constant length, so the O(1) roll (which assumes a fixed
			// window size) no longer applies; recompute directly over the
			// now-shorter window instead.
			window = window[1:]
			roll.Reset()
			roll.Update(window)
		}
	}

	if err := flushLiteral(); err != nil {
		return err
	}
	return tw.End(fileHash.Sum(nil))
}

func matchWhole(r io.Reader, seed int32, algo string, tw *TokenWriter) error {
	fileHash, err := rsyncchecksum.New(algo, seed)
	if err != nil {
		return err
	}
	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if werr := tw.Literal(chunk); werr != nil {
				return werr
			}
			fileHash.Write(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return tw.End(fileHash.Sum(nil))
}

func bytesHavePrefix(full, prefix []byte) bool {
	if len(full) < len(prefix) {
		return false
	}
	for i := range prefix {
		if full[i] != prefix[i] {
			return false
		}
	}
	return true
}
