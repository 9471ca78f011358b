package delta

import (
	"bytes"
	"os"
	"testing"

	"github.com/birsync/rsync/internal/signature"
)

// roundTrip runs the full sender/receiver delta pipeline for one (basis, new)
// pair: generate the basis signature, index it, match the new data against
// it to produce a token stream, then apply that stream back against the
// basis and assert the reconstruction is byte-identical to new, per spec.md
// §8.1/§8.2's round-trip invariant.
func roundTrip(t *testing.T, basisData, newData []byte, seed int32, algo string, seedFix bool) {
	t.Helper()

	sig, err := signature.Generate(bytes.NewReader(basisData), int64(len(basisData)), seed, algo, seedFix)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	idx := signature.BuildIndex(sig)

	var tokenStream bytes.Buffer
	tw := &TokenWriter{W: &tokenStream}
	if err := Match(bytes.NewReader(newData), idx, seed, algo, tw, seedFix); err != nil {
		t.Fatalf("Match: %v", err)
	}

	basisFile, err := os.CreateTemp(t.TempDir(), "basis")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer basisFile.Close()
	if _, err := basisFile.Write(basisData); err != nil {
		t.Fatalf("writing basis file: %v", err)
	}
	if _, err := basisFile.Seek(0, 0); err != nil {
		t.Fatalf("seeking basis file: %v", err)
	}
	mf := NewMapFile(basisFile)

	var out bytes.Buffer
	tr := &TokenReader{R: &tokenStream}
	if err := Apply(tr, sig.Head, mf, &out, seed, algo); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if !bytes.Equal(out.Bytes(), newData) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", out.Len(), len(newData))
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		basis   []byte
		new     []byte
		seed    int32
		algo    string
		seedFix bool
	}{
		{
			name:  "identical files reconstruct exactly",
			basis: bytes.Repeat([]byte("abcdefghij"), 200),
			new:   bytes.Repeat([]byte("abcdefghij"), 200),
			seed:  0,
			algo:  "md5",
		},
		{
			name:  "empty basis forces a whole-file literal transfer",
			basis: nil,
			new:   []byte("the quick brown fox jumps over the lazy dog"),
			seed:  0,
			algo:  "md5",
		},
		{
			name:  "empty new file against a non-empty basis",
			basis: bytes.Repeat([]byte("z"), 5000),
			new:   nil,
			seed:  0,
			algo:  "md5",
		},
		{
			name:  "appended tail beyond the basis",
			basis: bytes.Repeat([]byte("0123456789"), 300),
			new:   append(bytes.Repeat([]byte("0123456789"), 300), []byte("EXTRA TAIL DATA THAT HAS NO BASIS MATCH")...),
			seed:  0,
			algo:  "md5",
		},
		{
			name:  "prepended insertion shifts every block boundary",
			basis: bytes.Repeat([]byte("0123456789"), 300),
			new:   append([]byte("PREFIX"), bytes.Repeat([]byte("0123456789"), 300)...),
			seed:  0,
			algo:  "md5",
		},
		{
			name:  "nonzero checksum seed",
			basis: bytes.Repeat([]byte("seeded-content-"), 100),
			new:   bytes.Repeat([]byte("seeded-content-"), 100),
			seed:  12345,
			algo:  "md5",
		},
		{
			name:    "nonzero seed folded into the rolling checksum",
			basis:   bytes.Repeat([]byte("seed-fix-basis--"), 120),
			new:     append([]byte("HEAD"), bytes.Repeat([]byte("seed-fix-basis--"), 120)...),
			seed:    0x1badb002,
			algo:    "md5",
			seedFix: true,
		},
		{
			name:  "sha1 digest",
			basis: bytes.Repeat([]byte("sha1-basis-data-"), 150),
			new:   append(bytes.Repeat([]byte("sha1-basis-data-"), 75), bytes.Repeat([]byte("different-tail-x"), 75)...),
			seed:  7,
			algo:  "sha1",
		},
		{
			name:  "xxh64 digest",
			basis: bytes.Repeat([]byte("xxh64-basis-"), 400),
			new:   bytes.Repeat([]byte("xxh64-basis-"), 400),
			seed:  0,
			algo:  "xxh64",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			roundTrip(t, tc.basis, tc.new, tc.seed, tc.algo, tc.seedFix)
		})
	}
}

// TestApplyDetectsBlockOutOfRange confirms the bounds check spec.md §4.3
// requires: a block reference beyond the basis signature's block count must
// be rejected rather than silently read.
func TestApplyDetectsBlockOutOfRange(t *testing.T) {
	var stream bytes.Buffer
	tw := &TokenWriter{W: &stream}
	if err := tw.BlockRef(50); err != nil {
		t.Fatalf("BlockRef: %v", err)
	}
	if err := tw.End(make([]byte, 16)); err != nil {
		t.Fatalf("End: %v", err)
	}

	head := signature.SumHead{ChecksumCount: 1, BlockLength: 700, ChecksumLength: 16}
	tr := &TokenReader{R: &stream}
	var out bytes.Buffer
	err := Apply(tr, head, nil, &out, 0, "md5")
	if err == nil {
		t.Fatal("expected an out-of-range error, got nil")
	}
}
