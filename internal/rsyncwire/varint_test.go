package rsyncwire

import (
	"bytes"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []int32{
		0, 1, 0x7F, 0x80, 0xFF, 0x100, 0x1234, 0x7FFF, 0x8000,
		0xFFFFF, 1 << 24, -1, -12345, 0x7FFFFFFF, -0x80000000,
	}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarint(&buf, v, 1); err != nil {
			t.Fatalf("WriteVarint(%d): %v", v, err)
		}
		got, err := ReadVarint(&buf, 1)
		if err != nil {
			t.Fatalf("ReadVarint after writing %d: %v", v, err)
		}
		if got != v {
			t.Errorf("varint round-trip: wrote %d, read %d", v, got)
		}
		if buf.Len() != 0 {
			t.Errorf("varint %d: %d bytes left unconsumed", v, buf.Len())
		}
	}
}

func TestVarlongRoundTrip(t *testing.T) {
	values := []int64{
		0, 1, 0xFFFF, 0x10000, 1 << 31, 1 << 40, 1<<50 + 12345,
		0x7FFFFFFFFFFFFFFF, -1,
	}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarlong(&buf, v, 3); err != nil {
			t.Fatalf("WriteVarlong(%d): %v", v, err)
		}
		got, err := ReadVarlong(&buf, 3)
		if err != nil {
			t.Fatalf("ReadVarlong after writing %d: %v", v, err)
		}
		if got != v {
			t.Errorf("varlong round-trip: wrote %d, read %d", v, got)
		}
	}
}

// TestVarintSmallValuesStayNarrow pins the wire width of values that must
// stay compact: single-byte values below 0x80 go out as themselves, and
// the 3-byte varlong baseline never shrinks below three bytes.
func TestVarintSmallValuesStayNarrow(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVarint(&buf, 0x5A, 1); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes(); len(got) != 1 || got[0] != 0x5A {
		t.Errorf("WriteVarint(0x5A) = % x, want a bare 5a", got)
	}

	buf.Reset()
	if err := WriteVarlong(&buf, 5, 3); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 3 {
		t.Errorf("WriteVarlong(5, 3) used %d bytes, want the 3-byte baseline", buf.Len())
	}
}
