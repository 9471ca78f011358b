package signature

// Index is the two-level block-match hash table described in spec.md §3:
// bucketed by the low 16 bits of the rolling checksum, each bucket holding
// candidate block indices, filtered first by full rolling-checksum equality
// and only then verified against the raw window bytes via the strong
// digest (done by the caller, since that requires reading the candidate
// window).
//
// Grounded on the bucket/verify shape described in
// other_examples/..._c4milo-gsync__gsync.go, adapted to rsync's two-level
// (low-16 bucket, full-32 secondary key) scheme rather than a flat map.
type Index struct {
	sig     *Signature
	buckets map[uint16][]int32
}

// BuildIndex constructs the hash table over sig's blocks.
func BuildIndex(sig *Signature) *Index {
	idx := &Index{
		sig:     sig,
		buckets: make(map[uint16][]int32, len(sig.Blocks)),
	}
	for i, b := range sig.Blocks {
		key := uint16(b.Rolling & 0xFFFF)
		idx.buckets[key] = append(idx.buckets[key], int32(i))
	}
	return idx
}

// Candidates returns the block indices whose rolling checksum exactly
// matches rolling (both the low-16 bucket key and the full 32-bit value),
// ready for strong-digest verification by the caller.
func (idx *Index) Candidates(rolling uint32) []int32 {
	bucket := idx.buckets[uint16(rolling&0xFFFF)]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]int32, 0, len(bucket))
	for _, i := range bucket {
		if idx.sig.Blocks[i].Rolling == rolling {
			out = append(out, i)
		}
	}
	return out
}

// Block returns the signature block at index i.
func (idx *Index) Block(i int32) BlockSig { return idx.sig.Blocks[i] }

// Head returns the sum head of the indexed signature.
func (idx *Index) Head() SumHead { return idx.sig.Head }
