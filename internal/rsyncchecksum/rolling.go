// Package rsyncchecksum implements the two checksum layers the delta
// engine needs: an O(1)-incremental rolling checksum used to find
// candidate block boundaries, and a pluggable strong digest used to
// confirm matches and verify whole files (spec.md §4.2).
package rsyncchecksum

// Rolling computes rsync's Adler-32-like rolling checksum incrementally.
// The low 16 bits are a sum of bytes mod 2^16; the high 16 bits are a sum
// of positional products, matching rsync/checksum.c:get_checksum1 bit for
// bit. A zero-value Rolling is ready to use.
type Rolling struct {
	a, b uint32 // a = low half accumulator, b = high half accumulator
	n    uint32 // number of bytes folded in so far, needed for the roll step
}

// Reset clears the checksum so it can be reused for a new window.
func (r *Rolling) Reset() { *r = Rolling{} }

// Update folds buf into the checksum, as if computed from scratch over buf.
// Callers wanting an incremental rolling window should use Roll instead
// once the initial window has been established with Update.
func (r *Rolling) Update(buf []byte) {
	var a, b uint32
	n := uint32(len(buf))
	for i, c := range buf {
		a += uint32(c)
		b += (n - uint32(i)) * uint32(c)
	}
	r.a = a
	r.b = b
	r.n = n
}

// Roll advances the window by one byte: `out` leaves the window (it was the
// first byte of the previous window) and `in` enters it (appended at the
// end). This is the hot path used by the sender's byte-at-a-time scan.
func (r *Rolling) Roll(out, in byte) {
	r.a = r.a - uint32(out) + uint32(in)
	r.b = r.b - r.n*uint32(out) + r.a
}

// Value returns the 32-bit checksum as rsync transmits it: low 16 bits from
// a, high 16 from b.
func (r *Rolling) Value() uint32 {
	return (r.b << 16) | (r.a & 0xffff)
}

// SeededValue returns the checksum as if the seed's four little-endian
// bytes followed the current window. Folding the seed in after (rather
// than before) the data keeps the O(1) Roll usable: a sliding window only
// shifts every data byte's positional weight by the constant seed width,
// so the adjustment is computable from the running sums alone.
func (r *Rolling) SeededValue(seed int32) uint32 {
	s0, s1 := uint32(byte(seed)), uint32(byte(seed>>8))
	s2, s3 := uint32(byte(seed>>16)), uint32(byte(seed>>24))
	a := r.a + s0 + s1 + s2 + s3
	b := r.b + 4*r.a + 4*s0 + 3*s1 + 2*s2 + s3
	return (b << 16) | (a & 0xffff)
}

// Sum32 computes the rolling checksum over buf from scratch, optionally
// mixing in the session seed. The seed contributes only when seedFix is
// set (CHECKSUM_SEED_FIX negotiated, protocol >= 30 — spec.md §4.2).
func Sum32(buf []byte, seed int32, seedFix bool) uint32 {
	var r Rolling
	r.Update(buf)
	if seedFix && seed != 0 {
		return r.SeededValue(seed)
	}
	return r.Value()
}
