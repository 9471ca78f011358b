package signature

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/birsync/rsync/internal/rsyncchecksum"
)

func TestChooseBlockLayout(t *testing.T) {
	tests := []struct {
		name     string
		fileSize int64
	}{
		{"empty", 0},
		{"tiny", 11},
		{"one block exactly", 700},
		{"just over a block", 701},
		{"a few MiB", 3 << 20},
		{"a GiB", 1 << 30},
		{"block length hits upper clamp", 1 << 40},
		{"count would exceed cap", int64(BlockMax) * MaxBlockCount * 4},
	}
	for _, tc := range tests {
		bl, rem, count, sl := ChooseBlockLayout(tc.fileSize)

		if bl < BlockMin {
			t.Errorf("%s: block length %d below minimum %d", tc.name, bl, BlockMin)
		}
		if count > MaxBlockCount {
			t.Errorf("%s: block count %d exceeds cap %d", tc.name, count, MaxBlockCount)
		}
		if sl < StrongLenMin || sl > StrongLenMax {
			t.Errorf("%s: strong length %d outside [%d, %d]", tc.name, sl, StrongLenMin, StrongLenMax)
		}
		if tc.fileSize <= 0 {
			if count != 0 {
				t.Errorf("%s: empty file got %d blocks", tc.name, count)
			}
			continue
		}

		// The layout must tile the file exactly: count-1 full blocks plus
		// either a remainder block or one more full block.
		covered := int64(count-1)*int64(bl) + int64(rem)
		if rem == 0 {
			covered = int64(count) * int64(bl)
		}
		if covered != tc.fileSize {
			t.Errorf("%s: layout covers %d bytes of a %d-byte file (L=%d R=%d count=%d)",
				tc.name, covered, tc.fileSize, bl, rem, count)
		}
	}
}

func TestChooseBlockLayoutStrongLenGrows(t *testing.T) {
	_, _, _, small := ChooseBlockLayout(1 << 10)
	_, _, _, large := ChooseBlockLayout(1 << 40)
	if large < small {
		t.Errorf("strong length shrank with file size: %d bytes for 1KiB, %d for 1TiB", small, large)
	}
}

func TestGenerateAndWireRoundTrip(t *testing.T) {
	basis := make([]byte, 1800) // BlockMin-sized blocks with a remainder
	for i := range basis {
		basis[i] = byte(i % 251)
	}

	sig, err := Generate(bytes.NewReader(basis), int64(len(basis)), 0x7034, rsyncchecksum.MD5, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got, want := sig.Head.ChecksumCount, int32(3); got != want {
		t.Fatalf("ChecksumCount = %d, want %d", got, want)
	}
	if got, want := sig.Head.RemainderLength, int32(400); got != want {
		t.Fatalf("RemainderLength = %d, want %d", got, want)
	}
	for i, b := range sig.Blocks {
		if got, want := len(b.Strong), int(sig.Head.ChecksumLength); got != want {
			t.Errorf("block %d: strong prefix %d bytes, want %d", i, got, want)
		}
	}

	var buf bytes.Buffer
	if err := sig.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := ReadSignature(&buf)
	if err != nil {
		t.Fatalf("ReadSignature: %v", err)
	}
	if diff := cmp.Diff(sig, got); diff != "" {
		t.Errorf("signature wire round-trip: diff (-sent +received):\n%s", diff)
	}
}

func TestSumHeadGeometry(t *testing.T) {
	head := SumHead{ChecksumCount: 3, BlockLength: 700, RemainderLength: 400}

	if got := head.BlockLengthAt(0); got != 700 {
		t.Errorf("BlockLengthAt(0) = %d, want 700", got)
	}
	if got := head.BlockLengthAt(2); got != 400 {
		t.Errorf("BlockLengthAt(2) = %d, want remainder 400", got)
	}
	if got := head.OffsetOf(2); got != 1400 {
		t.Errorf("OffsetOf(2) = %d, want 1400", got)
	}

	// With no remainder the last block is full-length.
	full := SumHead{ChecksumCount: 2, BlockLength: 700}
	if got := full.BlockLengthAt(1); got != 700 {
		t.Errorf("BlockLengthAt(last, no remainder) = %d, want 700", got)
	}
}

func TestIndexCandidates(t *testing.T) {
	basis := make([]byte, 2100) // exactly three full blocks
	for i := range basis {
		basis[i] = byte(i * 31)
	}
	sig, err := Generate(bytes.NewReader(basis), int64(len(basis)), 0, rsyncchecksum.MD5, false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	idx := BuildIndex(sig)

	for i, b := range sig.Blocks {
		cands := idx.Candidates(b.Rolling)
		found := false
		for _, c := range cands {
			if c == int32(i) {
				found = true
			}
		}
		if !found {
			t.Errorf("block %d not among candidates for its own rolling checksum %#x: %v", i, b.Rolling, cands)
		}
	}

	// Same low 16 bits as block 0 but a different high half must be
	// filtered out by the secondary full-checksum comparison.
	collider := (sig.Blocks[0].Rolling ^ 0xffff0000)
	if cands := idx.Candidates(collider); len(cands) != 0 {
		t.Errorf("Candidates(%#x) = %v, want none (full rolling checksum differs)", collider, cands)
	}
}
