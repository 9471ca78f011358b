// Package rsyncwire implements the bottom of the protocol stack: integer
// and varint encoding, NDX (file-list index) encoding, and protocol >= 30
// multiplex framing. Every other internal package builds on top of Conn.
//
// Corresponds to rsync/io.c.
package rsyncwire

import (
	"encoding/binary"
	"io"
)

// CountingReader wraps an io.Reader and tracks the number of bytes read,
// feeding the "total bytes read" transfer statistic (spec.md §4.6).
type CountingReader struct {
	R       io.Reader
	Scratch [8]byte
	Bytes   int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.Bytes += int64(n)
	return n, err
}

// CountingWriter is the write-side counterpart of CountingReader.
type CountingWriter struct {
	W     io.Writer
	Bytes int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.Bytes += int64(n)
	return n, err
}

// CounterPair wraps r and w in a CountingReader/CountingWriter pair sharing
// no state, so the caller can track bytes read and written independently
// even when r and w are the same underlying connection (the common case for
// a TCP or pipe transport).
func CounterPair(r io.Reader, w io.Writer) (*CountingReader, *CountingWriter) {
	return &CountingReader{R: r}, &CountingWriter{W: w}
}

// Conn bundles a reader/writer pair plus the bidirectional NDX codec state
// (each direction maintains independent prev_positive state, per spec.md
// §4.1).
type Conn struct {
	Reader io.Reader
	Writer io.Writer

	// Negotiated once at session setup; never 0.
	ProtocolVersion int

	ndxRecv ndxState
	ndxSend ndxState
}

func (c *Conn) WriteByte(b byte) error {
	var buf [1]byte
	buf[0] = b
	_, err := c.Writer.Write(buf[:])
	return err
}

func (c *Conn) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *Conn) WriteInt32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := c.Writer.Write(buf[:])
	return err
}

func (c *Conn) ReadInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// WriteInt64 sends a long per rsync's variable-width convention: values
// that fit in 31 unsigned bits go out as a plain 4-byte int32; otherwise a
// sentinel -1 is sent followed by the full 8-byte value.
func (c *Conn) WriteInt64(v int64) error {
	if v >= 0 && v <= 0x7FFFFFFF {
		return c.WriteInt32(int32(v))
	}
	if err := c.WriteInt32(-1); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := c.Writer.Write(buf[:])
	return err
}

func (c *Conn) ReadInt64() (int64, error) {
	v, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if v != -1 {
		return int64(v), nil
	}
	var buf [8]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func (c *Conn) WriteString(s string) error {
	_, err := io.WriteString(c.Writer, s)
	return err
}

func (c *Conn) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
