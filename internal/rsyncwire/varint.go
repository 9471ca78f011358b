package rsyncwire

import (
	"fmt"
	"io"
)

// WriteVarint and ReadVarint implement rsync's little-endian, length-
// prefixed-by-leading-ones variable-length integer encoding (spec.md §4.1).
// The first byte carries a run of leading one bits, one per byte beyond the
// baseline width, with its remaining low bits holding the value's most
// significant bits; the following bytes are the value's low bytes in
// little-endian order, matching rsync/io.c:write_var_number.
//
// minBytes sets the baseline width: 1 for general varint fields, 3 for the
// varlong form rsync uses for 64-bit statistics and file sizes.
func WriteVarint(w io.Writer, v int32, minBytes int) error {
	return writeVarNumber(w, uint64(uint32(v)), minBytes)
}

func ReadVarint(r io.Reader, minBytes int) (int32, error) {
	v, err := readVarNumber(r, minBytes)
	if err != nil {
		return 0, err
	}
	return int32(uint32(v)), nil
}

// WriteVarlong/ReadVarlong encode 64-bit fields (e.g. file sizes, mtimes
// beyond 2^31) with the same scheme; callers pass minBytes 3 to match
// rsync's write_varlong30.
func WriteVarlong(w io.Writer, v int64, minBytes int) error {
	return writeVarNumber(w, uint64(v), minBytes)
}

func ReadVarlong(r io.Reader, minBytes int) (int64, error) {
	v, err := readVarNumber(r, minBytes)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// maxExtraBytes caps the leading-ones run at 6, as upstream's
// int_byte_extra table does: the first byte always retains at least two
// data bits, and the widest encoding is minBytes+6 bytes on the wire.
const maxExtraBytes = 6

func writeVarNumber(w io.Writer, v uint64, minBytes int) error {
	if minBytes < 1 || minBytes > 8 {
		return fmt.Errorf("rsyncwire: invalid minBytes %d", minBytes)
	}
	// b[1..8] holds the value little-endian; b[0] becomes the marker byte.
	var b [9]byte
	for i := 0; i < 8; i++ {
		b[1+i] = byte(v >> (8 * uint(i)))
	}
	cnt := 8
	for cnt > minBytes && b[cnt] == 0 {
		cnt--
	}
	if cnt-minBytes > maxExtraBytes {
		return fmt.Errorf("rsyncwire: value %d too large for %d-byte varint", v, minBytes)
	}
	bit := byte(1) << uint(7-cnt+minBytes)
	switch {
	case b[cnt] >= bit:
		// Top byte collides with the marker bits: push it down a slot and
		// send a pure marker byte.
		cnt++
		if cnt-minBytes > maxExtraBytes {
			return fmt.Errorf("rsyncwire: value %d too large for %d-byte varint", v, minBytes)
		}
		b[0] = ^(bit - 1)
	case cnt > minBytes:
		b[0] = b[cnt] | ^(bit*2 - 1)
	default:
		b[0] = b[cnt]
	}
	_, err := w.Write(b[:cnt])
	return err
}

func readVarNumber(r io.Reader, minBytes int) (uint64, error) {
	if minBytes < 1 || minBytes > 8 {
		return 0, fmt.Errorf("rsyncwire: invalid minBytes %d", minBytes)
	}
	// Sized for the widest case, minBytes 8 plus 6 extra bytes plus the
	// slot the masked first byte is parked in.
	var b [15]byte
	if _, err := io.ReadFull(r, b[:minBytes]); err != nil {
		return 0, err
	}
	extra := 0
	for extra < maxExtraBytes && b[0]&(0x80>>uint(extra)) != 0 {
		extra++
	}
	total := minBytes + extra
	if total > 9 {
		return 0, fmt.Errorf("rsyncwire: varint of %d bytes overflows 64 bits", total)
	}
	if extra > 0 {
		if _, err := io.ReadFull(r, b[minBytes:total]); err != nil {
			return 0, err
		}
		mask := byte(1<<uint(8-extra)) - 1
		b[total] = b[0] & mask
	} else {
		b[total] = b[0]
	}
	// Value bytes are b[1..total] little-endian; the masked first byte has
	// been placed at the top.
	var v uint64
	for i := 1; i <= total; i++ {
		v |= uint64(b[i]) << (8 * uint(i-1))
	}
	return v, nil
}
