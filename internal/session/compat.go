package session

import (
	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/rsyncwire"
)

// CompatFlags exchanges the compat bitfield immediately after version
// negotiation for protocol >= 30 (spec.md §4.6 "Compatibility flags"). Both
// sides send the bitfield as a varint (see Exchange) and the effective flag
// set is whichever bits
// both sides asserted, matching upstream's treatment of compat flags as
// capabilities rather than requirements.
type CompatFlags int32

func (f CompatFlags) Has(bit int32) bool { return int32(f)&bit != 0 }

// Exchange writes local and reads remote, returning the intersection.
// The bitfield goes out as a varint: it fit a single byte until ID0_NAMES
// claimed bit 8, and the varint encoding stays byte-identical to the old
// single-byte form for the low seven bits. Below protocol 30 compat flags
// do not exist; callers should not invoke this and should treat
// CompatFlags(0) as the session's flag set.
func Exchange(c *rsyncwire.Conn, local CompatFlags) (CompatFlags, error) {
	if err := rsyncwire.WriteVarint(c.Writer, int32(local), 1); err != nil {
		return 0, err
	}
	remote, err := rsyncwire.ReadVarint(c.Reader, 1)
	if err != nil {
		return 0, err
	}
	return local & CompatFlags(remote), nil
}

// DefaultCompatFlags is the set this implementation asserts when acting as
// the protocol-32 preferring side. INC_RECURSE is deliberately absent: the
// sender transmits the complete file list in one pass rather than
// per-directory batches, so advertising it to a modern peer (which enables
// incremental recursion by default) would desynchronize the list exchange.
// Leaving the bit unasserted makes the exchange's intersection drop it and
// forces both sides onto the whole-list path. The iconv/charset flags are
// likewise not implemented and not asserted.
const DefaultCompatFlags CompatFlags = rsync.CompatSafeFList |
	rsync.CompatFixedChecksumSeed |
	rsync.CompatCheckSumSeedFix |
	rsync.CompatVarintFListFlags |
	rsync.CompatID0Names
