// Package delta implements the rolling-hash block matcher (sender side)
// and the token-stream applier (receiver side) described in spec.md §4.3:
// the core of the "only transmit the differences" design.
package delta

import (
	"encoding/binary"
	"fmt"
	"io"
)

// TokenWriter emits the delta token stream: literal runs (positive length
// prefix + raw bytes), block references (negative index-based tag), and the
// zero terminator, matching rsync's token.c wire format described in
// spec.md §3.
type TokenWriter struct {
	W io.Writer
}

// Literal emits a literal run. Callers must not call Literal with an empty
// slice; batch pending bytes instead.
func (t *TokenWriter) Literal(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := writeInt32(t.W, int32(len(p))); err != nil {
		return err
	}
	_, err := t.W.Write(p)
	return err
}

// BlockRef emits a reference to basis block index (0-based). On the wire
// this is the negative tag -(index+1), per spec.md's "Delta token stream"
// definition.
func (t *TokenWriter) BlockRef(index int32) error {
	return writeInt32(t.W, -(index + 1))
}

// End emits the terminating zero tag followed by the whole-file strong
// checksum.
func (t *TokenWriter) End(fileChecksum []byte) error {
	if err := writeInt32(t.W, 0); err != nil {
		return err
	}
	_, err := t.W.Write(fileChecksum)
	return err
}

// TokenReader is the receive-side counterpart, handing back each token as
// either a literal byte slice, a block index, or io.EOF-equivalent
// (Done=true) once the zero terminator is seen.
type TokenReader struct {
	R io.Reader
}

// Token describes one parsed element of the stream.
type Token struct {
	Literal []byte // non-nil for a literal run
	Block   int32  // valid when Literal == nil && !Done
	Done    bool   // true once the terminator has been consumed
}

func (t *TokenReader) Next() (Token, error) {
	tag, err := readInt32(t.R)
	if err != nil {
		return Token{}, err
	}
	if tag == 0 {
		return Token{Done: true}, nil
	}
	if tag > 0 {
		buf := make([]byte, tag)
		if _, err := io.ReadFull(t.R, buf); err != nil {
			return Token{}, err
		}
		return Token{Literal: buf}, nil
	}
	return Token{Block: -(tag + 1)}, nil
}

// ReadFileChecksum reads the S2-byte whole-file checksum following the
// terminator.
func (t *TokenReader) ReadFileChecksum(length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(t.R, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeInt32(w io.Writer, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	_, err := w.Write(b[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

// ErrBlockOutOfRange is returned by Apply when a block reference exceeds
// the basis signature's block count, a protocol violation per spec.md §4.3
// ("Block indices MUST be bounds-checked against count").
var ErrBlockOutOfRange = fmt.Errorf("delta: block index out of range")
