// Package rsync defines the wire-level constants shared by every internal
// package: the supported protocol version range, the compatibility flag
// bitfield, file-list flag bits, multiplex tags and exit codes.
//
// Corresponds loosely to rsync/rsync.h and rsync/compat.c.
package rsync

// ProtocolVersion is the protocol version this implementation prefers to
// negotiate when acting as the initiating side. The negotiated protocol is
// always min(client, server); see internal/session.
const ProtocolVersion = 32

// MinProtocolVersion and MaxProtocolVersion bound the protocol versions this
// core speaks, per spec.md §1 ("protocol versions 27-32 of the existing
// rsync family").
const (
	MinProtocolVersion = 27
	MaxProtocolVersion = 32
)

// NdxDone is the reserved NDX value signalling a phase transition or, in the
// final exchange, the session goodbye. See spec.md's GLOSSARY entry "NDX".
const NdxDone = -1

// Compatibility flags, exchanged once immediately after version negotiation
// for protocol >= 30. Bit assignments match upstream rsync's compat.c.
const (
	CompatIncRecurse         = 1 << 0 // incremental (per-directory) file-list streaming
	CompatSymlinkTimes       = 1 << 1 // symlinks carry mtime
	CompatSymlinkIconv       = 1 << 2 // symlink targets go through iconv translation
	CompatSafeFList          = 1 << 3 // embedded I/O-error markers allowed in the file list
	CompatAvoidXattrOptim    = 1 << 4 // do not apply the xattr "same as previous" optimization
	CompatFixedChecksumSeed  = 1 << 5 // seed is mixed into the rolling/strong checksum before data
	CompatCheckSumSeedFix    = 1 << 6 // corrects the order of seed application (post-seed-fix rsync)
	CompatVarintFListFlags   = 1 << 7 // per-entry file-list flags are varint-encoded, not a fixed byte
	CompatID0Names           = 1 << 8 // an explicit name is sent for id 0 (root) in id-lists
)

// File-list per-entry status-byte bits. See spec.md §4.4 and the teacher's
// rsyncd/rsyncd.go sendFileList, which used a handful of these directly
// (FLIST_NAME_LONG, FLIST_TOP_LEVEL); the remainder is filled in from the
// upstream rsync flist.c status-byte table referenced by spec.md.
const (
	FlistTopLevel       = 0x01 // matching local directory is a deletion root
	FlistSameMode       = 0x02 // mode is a repeat of the previous entry's
	FlistExtendedFlags  = 0x04 // a second status byte follows (protocol >= 28)
	FlistSameUID        = 0x08 // uid is a repeat of the previous entry's
	FlistSameGID        = 0x10 // gid is a repeat of the previous entry's
	FlistNameSame       = 0x20 // inherit a common prefix from the previous entry's name
	FlistNameLong       = 0x40 // filename length is a full integer, not one byte
	FlistSameTime       = 0x80 // mtime is a repeat of the previous entry's
	FlistHlinked        = 0x0100 // a hard-link group id follows (second status byte); set on every member, not just repeats
)

// Multiplex tags, protocol >= 30. The header packs {length:24, tag:8} into a
// little-endian u32; see internal/rsyncwire.
const (
	MsgData    = 0
	MsgErrorXfer = 1
	MsgInfo    = 2
	MsgError   = 3
	MsgWarning = 4
	MsgIO      = 5
	MsgLog     = 6
	MsgClient  = 7
	MsgErrorSocket = 8
	MsgLogFile = 9
	MsgDone    = 86
	MsgSuccess = 100
	MsgDeleted = 101
	MsgNoSend  = 102
)

// Exit codes mirroring upstream rsync's errcode.h, per spec.md §6.
const (
	ExitOK                = 0
	ExitSyntaxError       = 1
	ExitProtocolError     = 2
	ExitFileSelectError   = 3
	ExitUnsupported       = 5
	ExitSocketIO          = 10
	ExitFileIO            = 11
	ExitStreamIO          = 12
	ExitMessageIO         = 13
	ExitIPC               = 14
	ExitTimeout           = 30
	ExitConnTimeout       = 35
	ExitServerCrashed     = 21
	ExitPartialTransfer   = 23
	ExitDeleteLimitHit    = 25
	ExitAccessDenied      = 22
)
