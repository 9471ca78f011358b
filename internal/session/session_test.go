package session

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/rsyncchecksum"
	"github.com/birsync/rsync/internal/rsyncstats"
	"github.com/birsync/rsync/internal/rsyncwire"
)

func TestGreetingRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		g    Greeting
		line string
	}{
		{"bare version", Greeting{Major: 27, Minor: 0}, "@RSYNCD: 27.0\n"},
		{"with digests", Greeting{Major: 31, Minor: 0, Digests: []string{"sha512", "sha256", "md5"}}, "@RSYNCD: 31.0 sha512 sha256 md5\n"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		if err := WriteGreeting(&buf, tc.g); err != nil {
			t.Fatalf("%s: WriteGreeting: %v", tc.name, err)
		}
		if got := buf.String(); got != tc.line {
			t.Errorf("%s: wrote %q, want %q", tc.name, got, tc.line)
		}
		got, err := ReadGreeting(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("%s: ReadGreeting: %v", tc.name, err)
		}
		if diff := cmp.Diff(tc.g, got); diff != "" {
			t.Errorf("%s: greeting round-trip diff (-sent +received):\n%s", tc.name, diff)
		}
	}
}

// TestGreetingNegotiation walks the daemon handshake scenario end to end:
// parsing "@RSYNCD: 31.0 sha512 sha256 md5" must yield protocol 31, and
// digest negotiation against it must drop names we do not support and pick
// the strongest of what remains.
func TestGreetingNegotiation(t *testing.T) {
	rd := bufio.NewReader(strings.NewReader("@RSYNCD: 31.0 sha512 sha256 md5 frobnitz\n"))
	g, err := ReadGreeting(rd)
	if err != nil {
		t.Fatalf("ReadGreeting: %v", err)
	}
	if g.Major != 31 {
		t.Errorf("Major = %d, want 31", g.Major)
	}
	want := []string{"sha512", "sha256", "md5", "frobnitz"}
	if diff := cmp.Diff(want, g.Digests); diff != "" {
		t.Errorf("Digests diff:\n%s", diff)
	}

	ver, err := NegotiatedVersion(rsync.ProtocolVersion, g.Major)
	if err != nil {
		t.Fatalf("NegotiatedVersion: %v", err)
	}
	if ver != 31 {
		t.Errorf("negotiated version = %d, want 31", ver)
	}

	algo, ok := rsyncchecksum.Negotiate(DigestList, g.Digests)
	if !ok || algo != rsyncchecksum.SHA512 {
		t.Errorf("Negotiate = (%q, %v), want (sha512, true); unknown names must be dropped silently", algo, ok)
	}
}

func TestReadGreetingRejectsGarbage(t *testing.T) {
	for _, line := range []string{"HTTP/1.1 200 OK\n", "@RSYNCD:\n", "@RSYNCD: x.y\n"} {
		if _, err := ReadGreeting(bufio.NewReader(strings.NewReader(line))); err == nil {
			t.Errorf("ReadGreeting(%q) succeeded, want error", line)
		}
	}
}

func TestNegotiatedVersion(t *testing.T) {
	tests := []struct {
		local, remote int
		want          int
		wantErr       bool
	}{
		{32, 31, 31, false},
		{32, 32, 32, false},
		{32, 40, 32, false}, // remote newer: clamp to what we speak
		{27, 32, 27, false},
		{32, 26, 0, true}, // below our minimum
	}
	for _, tc := range tests {
		got, err := NegotiatedVersion(tc.local, tc.remote)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NegotiatedVersion(%d, %d) = %d, want error", tc.local, tc.remote, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("NegotiatedVersion(%d, %d) = (%d, %v), want %d", tc.local, tc.remote, got, err, tc.want)
		}
	}
}

func TestNegotiateWire(t *testing.T) {
	// Client role: we write our version, the peer's 31 is already waiting.
	var peer bytes.Buffer
	peerConn := &rsyncwire.Conn{Writer: &peer}
	if err := peerConn.WriteInt32(31); err != nil {
		t.Fatal(err)
	}
	var sent bytes.Buffer
	c := &rsyncwire.Conn{Reader: &peer, Writer: &sent}
	got, err := NegotiateWire(c, 32, false)
	if err != nil {
		t.Fatalf("NegotiateWire(client): %v", err)
	}
	if got != 31 {
		t.Errorf("client negotiated %d, want 31", got)
	}
	check := &rsyncwire.Conn{Reader: &sent}
	if v, err := check.ReadInt32(); err != nil || v != 32 {
		t.Errorf("client sent version %d (err %v), want 32", v, err)
	}

	// Server role: read first, then answer.
	var fromClient, toClient bytes.Buffer
	cc := &rsyncwire.Conn{Writer: &fromClient}
	if err := cc.WriteInt32(30); err != nil {
		t.Fatal(err)
	}
	s := &rsyncwire.Conn{Reader: &fromClient, Writer: &toClient}
	got, err = NegotiateWire(s, 32, true)
	if err != nil {
		t.Fatalf("NegotiateWire(server): %v", err)
	}
	if got != 30 {
		t.Errorf("server negotiated %d, want 30", got)
	}
}

func TestCompatFlagsExchange(t *testing.T) {
	// The peer asserts a subset of ours plus a flag we do not set; only the
	// intersection survives, including a bit above the old one-byte range.
	remote := rsync.CompatIncRecurse | rsync.CompatID0Names | rsync.CompatSymlinkIconv
	var fromPeer bytes.Buffer
	if err := rsyncwire.WriteVarint(&fromPeer, int32(remote), 1); err != nil {
		t.Fatal(err)
	}
	var toPeer bytes.Buffer
	c := &rsyncwire.Conn{Reader: &fromPeer, Writer: &toPeer}

	got, err := Exchange(c, DefaultCompatFlags)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	want := CompatFlags(rsync.CompatID0Names)
	if got != want {
		t.Errorf("Exchange = %#x, want intersection %#x", got, want)
	}
	if !got.Has(rsync.CompatID0Names) {
		t.Error("ID0_NAMES lost in the exchange; bit 8 must survive the varint encoding")
	}
	if got.Has(rsync.CompatIncRecurse) {
		t.Error("INC_RECURSE survived although this side does not assert it")
	}
	if got.Has(rsync.CompatSymlinkIconv) {
		t.Error("SYMLINK_ICONV asserted only by the peer must not survive")
	}

	sent, err := rsyncwire.ReadVarint(&toPeer, 1)
	if err != nil || CompatFlags(sent) != DefaultCompatFlags {
		t.Errorf("sent flags %#x (err %v), want %#x", sent, err, DefaultCompatFlags)
	}
}

func TestPhaseCount(t *testing.T) {
	if got := PhaseCount(27); got != 1 {
		t.Errorf("PhaseCount(27) = %d, want 1", got)
	}
	if got := PhaseCount(31); got != 2 {
		t.Errorf("PhaseCount(31) = %d, want 2", got)
	}
}

func TestAwaitPhaseEnd(t *testing.T) {
	var fromPeer, toPeer bytes.Buffer
	peer := &rsyncwire.Conn{Writer: &fromPeer, ProtocolVersion: 31}
	if err := peer.WriteNdx(rsync.NdxDone); err != nil {
		t.Fatal(err)
	}
	c := &rsyncwire.Conn{Reader: &fromPeer, Writer: &toPeer, ProtocolVersion: 31}
	if err := AwaitPhaseEnd(c, false); err != nil {
		t.Fatalf("AwaitPhaseEnd: %v", err)
	}
	// A non-final phase end is echoed back.
	echo := &rsyncwire.Conn{Reader: &toPeer, ProtocolVersion: 31}
	if ndx, err := echo.ReadNdx(); err != nil || ndx != rsync.NdxDone {
		t.Errorf("echo = (%d, %v), want NDX_DONE", ndx, err)
	}

	// A real file index where NDX_DONE is required is a protocol violation.
	fromPeer.Reset()
	if err := peer.WriteNdx(7); err != nil {
		t.Fatal(err)
	}
	bad := &rsyncwire.Conn{Reader: &fromPeer, ProtocolVersion: 31}
	if err := AwaitPhaseEnd(bad, true); err == nil {
		t.Error("AwaitPhaseEnd accepted a file index in place of NDX_DONE")
	}
}

func TestStatsRoundTrip(t *testing.T) {
	stats := rsyncstats.TransferStats{
		Read:             123456789,
		Written:          42,
		Size:             1 << 33,
		FlistBuildTimeMs: 250,
		FlistXferTimeMs:  18,
	}
	for _, protocol := range []int{28, 31} {
		var buf bytes.Buffer
		wc := &rsyncwire.Conn{Writer: &buf, ProtocolVersion: protocol}
		if err := WriteStats(wc, protocol, stats); err != nil {
			t.Fatalf("protocol %d: WriteStats: %v", protocol, err)
		}
		rc := &rsyncwire.Conn{Reader: &buf, ProtocolVersion: protocol}
		got, err := ReadStats(rc, protocol)
		if err != nil {
			t.Fatalf("protocol %d: ReadStats: %v", protocol, err)
		}
		want := stats
		if protocol < 29 {
			// flist timings are not on the wire below 29.
			want.FlistBuildTimeMs = 0
			want.FlistXferTimeMs = 0
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("protocol %d: stats diff (-want +got):\n%s", protocol, diff)
		}
	}
}

func TestGoodbye(t *testing.T) {
	// Below 31 the goodbye exchange does not exist.
	c := &rsyncwire.Conn{ProtocolVersion: 30}
	if err := Goodbye(c, 30, true); err != nil {
		t.Fatalf("Goodbye(30): %v", err)
	}

	// At 31 the sender writes one NDX_DONE; the receiver reads it and
	// answers with the final one.
	var senderOut, receiverOut bytes.Buffer
	sender := &rsyncwire.Conn{Writer: &senderOut, ProtocolVersion: 31}
	if err := Goodbye(sender, 31, true); err != nil {
		t.Fatalf("Goodbye(sender): %v", err)
	}
	receiver := &rsyncwire.Conn{Reader: &senderOut, Writer: &receiverOut, ProtocolVersion: 31}
	if err := Goodbye(receiver, 31, false); err != nil {
		t.Fatalf("Goodbye(receiver): %v", err)
	}
	final := &rsyncwire.Conn{Reader: &receiverOut, ProtocolVersion: 31}
	if ndx, err := final.ReadNdx(); err != nil || ndx != rsync.NdxDone {
		t.Errorf("receiver's final word = (%d, %v), want NDX_DONE", ndx, err)
	}
}

func TestArgsRoundTrip(t *testing.T) {
	args := []string{"--server", "--sender", "-vlogDtpre.iLsfxCIvu", ".", "module/path"}
	for _, protocol := range []int{29, 31} {
		var buf bytes.Buffer
		if err := WriteArgs(&buf, protocol, args); err != nil {
			t.Fatalf("protocol %d: WriteArgs: %v", protocol, err)
		}
		got, err := ReadArgs(bufio.NewReader(&buf), protocol)
		if err != nil {
			t.Fatalf("protocol %d: ReadArgs: %v", protocol, err)
		}
		if diff := cmp.Diff(args, got); diff != "" {
			t.Errorf("protocol %d: args diff (-sent +received):\n%s", protocol, diff)
		}
	}
}

func TestSecludedArgs(t *testing.T) {
	phase1 := ProtectArgsPhase1(true)
	want1 := []string{"--server", "--sender", "-s", "."}
	if diff := cmp.Diff(want1, phase1); diff != "" {
		t.Errorf("ProtectArgsPhase1(sender) diff:\n%s", diff)
	}

	full := []string{"--server", "--sender", "-s", "--exclude=*.o", ".", "some dir/with spaces"}
	var buf bytes.Buffer
	if err := WriteSecludedArgs(&buf, full); err != nil {
		t.Fatalf("WriteSecludedArgs: %v", err)
	}
	got, err := ReadSecludedArgs(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadSecludedArgs: %v", err)
	}
	if diff := cmp.Diff(full, got); diff != "" {
		t.Errorf("secluded args diff (-sent +received):\n%s", diff)
	}
}

func TestEarlyInput(t *testing.T) {
	payload := []byte("token-for-the-pre-exec-hook\x00with binary\xff bytes")
	var buf bytes.Buffer
	if err := WriteEarlyInput(&buf, payload); err != nil {
		t.Fatalf("WriteEarlyInput: %v", err)
	}

	rd := bufio.NewReader(&buf)
	header, err := rd.ReadString('\n')
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	header = strings.TrimSuffix(header, "\n")
	got, err := ReadEarlyInput(rd, header)
	if err != nil {
		t.Fatalf("ReadEarlyInput: %v", err)
	}
	if !bytes.Equal(payload, got) {
		t.Errorf("early input round-trip: sent %q, received %q", payload, got)
	}

	if err := WriteEarlyInput(&buf, make([]byte, MaxEarlyInputLen+1)); err == nil {
		t.Error("WriteEarlyInput accepted an oversized payload")
	}
}
