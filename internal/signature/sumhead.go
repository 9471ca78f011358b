// Package signature implements block-signature generation and the
// two-level hash index used to match basis blocks against a target file
// (spec.md §3 "Signature", §4.3).
package signature

import (
	"github.com/birsync/rsync/internal/rsyncwire"
)

// SumHead is the fixed-size preamble that precedes a file's signature
// blocks on the wire, named identically to the teacher's sumHead struct in
// rsyncd/rsyncd.go (ChecksumCount/BlockLength/ChecksumLength/
// RemainderLength), generalized to live in its own package with
// ReadFrom/WriteTo so both internal/sender and internal/receiver can share
// it (the teacher's receiver.go referenced it as rsync.SumHead, a package
// not present in the retrieval pack; this fulfils that exact role under
// internal/signature instead).
type SumHead struct {
	ChecksumCount   int32
	BlockLength     int32
	ChecksumLength  int32
	RemainderLength int32
}

func (s *SumHead) ReadFrom(c *rsyncwire.Conn) error {
	var err error
	if s.ChecksumCount, err = c.ReadInt32(); err != nil {
		return err
	}
	if s.BlockLength, err = c.ReadInt32(); err != nil {
		return err
	}
	if s.ChecksumLength, err = c.ReadInt32(); err != nil {
		return err
	}
	if s.RemainderLength, err = c.ReadInt32(); err != nil {
		return err
	}
	return nil
}

func (s SumHead) WriteTo(c *rsyncwire.Conn) error {
	if err := c.WriteInt32(s.ChecksumCount); err != nil {
		return err
	}
	if err := c.WriteInt32(s.BlockLength); err != nil {
		return err
	}
	if err := c.WriteInt32(s.ChecksumLength); err != nil {
		return err
	}
	return c.WriteInt32(s.RemainderLength)
}

// BlockLengthAt returns the length of the block at the given zero-based
// index: BlockLength for all but the last block, which is RemainderLength
// when non-zero.
func (s SumHead) BlockLengthAt(index int32) int32 {
	if index == s.ChecksumCount-1 && s.RemainderLength != 0 {
		return s.RemainderLength
	}
	return s.BlockLength
}

// OffsetOf returns the basis-file byte offset of block index.
func (s SumHead) OffsetOf(index int32) int64 {
	return int64(index) * int64(s.BlockLength)
}
