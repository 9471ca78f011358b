package rsyncwire

import (
	"io"

	"github.com/birsync/rsync/internal/version"
)

// ndxState holds the previous-index values each direction of a duplex
// connection must track independently for the delta NDX encoding used by
// protocol >= 30 (spec.md §4.1). Negative indices are delta-encoded
// against their own previous value, by magnitude, exactly as upstream's
// static prev_positive/prev_negative pair in rsync/io.c.
type ndxState struct {
	prevPositive int32
	prevNegative int32 // magnitude of the previous negative index
	initialized  bool
}

func (st *ndxState) init() {
	if !st.initialized {
		st.prevPositive = -1
		st.prevNegative = 1
		st.initialized = true
	}
}

const ndxDone = -1

// WriteNdx writes a file-list index. For protocol < 30 this is a plain
// 4-byte little-endian int32; for protocol >= 30 it is delta-encoded
// against the previous index written in this direction, matching
// rsync/io.c:write_ndx byte for byte.
func (c *Conn) WriteNdx(ndx int32) error {
	if !version.SupportsDeltaNdx(c.ProtocolVersion) {
		return c.WriteInt32(ndx)
	}
	return writeNdxDelta(c.Writer, &c.ndxSend, ndx)
}

// ReadNdx is the receive-side counterpart of WriteNdx.
func (c *Conn) ReadNdx() (int32, error) {
	if !version.SupportsDeltaNdx(c.ProtocolVersion) {
		return c.ReadInt32()
	}
	return readNdxDelta(c.Reader, &c.ndxRecv)
}

func writeNdxDelta(w io.Writer, st *ndxState, ndx int32) error {
	st.init()
	if ndx == ndxDone {
		_, err := w.Write([]byte{0})
		return err
	}

	var b [6]byte
	cnt := 0
	var diff int32
	if ndx >= 0 {
		diff = ndx - st.prevPositive
		st.prevPositive = ndx
	} else {
		// Negative indices (flist-EOF and offset markers) are prefixed
		// with 0xFF and delta-encoded by magnitude against their own
		// previous value.
		ndx = -ndx
		diff = ndx - st.prevNegative
		st.prevNegative = ndx
		b[cnt] = 0xFF
		cnt++
	}

	switch {
	case diff > 0 && diff < 0xFE:
		b[cnt] = byte(diff)
		cnt++
	case diff < 0 || diff > 0x7FFF:
		// Absolute form: 0xFE, then the index's high byte with the top
		// bit set as a flag, then the low three bytes.
		b[cnt] = 0xFE
		cnt++
		b[cnt] = byte(uint32(ndx)>>24) | 0x80
		cnt++
		b[cnt] = byte(ndx)
		cnt++
		b[cnt] = byte(ndx >> 8)
		cnt++
		b[cnt] = byte(ndx >> 16)
		cnt++
	default:
		// Two-byte diff form, big-endian, flag bit clear.
		b[cnt] = 0xFE
		cnt++
		b[cnt] = byte(diff >> 8)
		cnt++
		b[cnt] = byte(diff)
		cnt++
	}
	_, err := w.Write(b[:cnt])
	return err
}

func readNdxDelta(r io.Reader, st *ndxState) (int32, error) {
	st.init()
	var b [4]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, err
	}
	prev := &st.prevPositive
	negative := false
	if b[0] == 0xFF {
		if _, err := io.ReadFull(r, b[:1]); err != nil {
			return 0, err
		}
		prev = &st.prevNegative
		negative = true
	} else if b[0] == 0 {
		return ndxDone, nil
	}

	var num int32
	if b[0] == 0xFE {
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return 0, err
		}
		if b[0]&0x80 != 0 {
			b[3] = b[0] &^ 0x80
			b[0] = b[1]
			if _, err := io.ReadFull(r, b[1:3]); err != nil {
				return 0, err
			}
			num = int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
		} else {
			num = int32(uint32(b[0])<<8|uint32(b[1])) + *prev
		}
	} else {
		num = int32(b[0]) + *prev
	}
	*prev = num
	if negative {
		num = -num
	}
	return num, nil
}
