package rsyncwire

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeThenRead writes the sequence of NDX values at the given protocol
// version into an in-memory buffer using one Conn, then reads them back
// using a second, independently-stated Conn wrapping the same buffer,
// mirroring how the two directions of a real duplex connection never share
// ndxState (spec.md §4.1).
func writeThenRead(t *testing.T, protocolVersion int, values []int32) []int32 {
	t.Helper()

	var buf bytes.Buffer
	wc := &Conn{Writer: &buf, ProtocolVersion: protocolVersion}
	for _, v := range values {
		if err := wc.WriteNdx(v); err != nil {
			t.Fatalf("WriteNdx(%d): %v", v, err)
		}
	}

	rc := &Conn{Reader: &buf, ProtocolVersion: protocolVersion}
	got := make([]int32, 0, len(values))
	for range values {
		v, err := rc.ReadNdx()
		if err != nil {
			t.Fatalf("ReadNdx: %v", err)
		}
		got = append(got, v)
	}
	return got
}

func TestNdxCodecSymmetry(t *testing.T) {
	tests := []struct {
		name            string
		protocolVersion int
		values          []int32
	}{
		{
			name:            "plain int32 below protocol 30",
			protocolVersion: 29,
			values:          []int32{0, 1, 2, 100, -1, 5000, -1},
		},
		{
			name:            "ascending small diffs",
			protocolVersion: 30,
			values:          []int32{0, 1, 2, 3, 10, 50, 253},
		},
		{
			name:            "diff requiring the 0xFE two-byte escape",
			protocolVersion: 30,
			values:          []int32{0, 300, 301, 10000, 9999},
		},
		{
			name:            "diff requiring the absolute 0xFE escape",
			protocolVersion: 30,
			values:          []int32{0, 1 << 20, (1 << 20) + 1},
		},
		{
			name:            "negative diff after a run of increases",
			protocolVersion: 30,
			values:          []int32{10, 20, 30, 5, 6},
		},
		{
			name:            "mixed signalled-negative and positive indices",
			protocolVersion: 32,
			values:          []int32{0, 1, -2, 5, -100, 6, 7},
		},
		{
			name:            "interleaved done sentinel",
			protocolVersion: 32,
			values:          []int32{3, 4, -1, 5, 6},
		},
		{
			name:            "max protocol version, large jumps both directions",
			protocolVersion: 32,
			values:          []int32{0, 1000000, 1, 999999, 2000000},
		},
		{
			name:            "positive diff just above the two-byte range",
			protocolVersion: 30,
			values:          []int32{0, 50000, 50001},
		},
		{
			name:            "backwards jump forcing the absolute form",
			protocolVersion: 30,
			values:          []int32{2000000, 1, 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := writeThenRead(t, tc.protocolVersion, tc.values)
			if diff := cmp.Diff(tc.values, got); diff != "" {
				t.Errorf("NDX round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestNdxWireBytes pins the exact wire forms of the delta encoding: the
// very first index 0 is a diff of 1 against the initial previous value of
// -1, NDX_DONE is a bare zero byte, and a large first index uses the
// absolute form with the flag bit set on the high byte.
func TestNdxWireBytes(t *testing.T) {
	var buf bytes.Buffer
	c := &Conn{Writer: &buf, ProtocolVersion: 31}

	if err := c.WriteNdx(0); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes(); len(got) != 1 || got[0] != 0x01 {
		t.Errorf("first WriteNdx(0) = % x, want 01 (diff against initial prev of -1)", got)
	}

	buf.Reset()
	if err := c.WriteNdx(-1); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes(); len(got) != 1 || got[0] != 0x00 {
		t.Errorf("WriteNdx(NDX_DONE) = % x, want a bare 00", got)
	}

	buf.Reset()
	fresh := &Conn{Writer: &buf, ProtocolVersion: 31}
	if err := fresh.WriteNdx(0x123456); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFE, 0x80, 0x56, 0x34, 0x12}
	if diff := cmp.Diff(want, buf.Bytes()); diff != "" {
		t.Errorf("absolute form bytes diff (-want +got):\n%s", diff)
	}
}
