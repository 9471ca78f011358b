// Package session implements the protocol-level handshake shared by both
// daemon and SSH-piped transports: version negotiation, the daemon text
// greeting, compat-flag and checksum-seed exchange, the multi-phase
// NDX_DONE transfer loop, and the final statistics/goodbye exchange
// (spec.md §4.6 "Protocol session").
//
// Grounded on the teacher's rsyncd.go HandleDaemonConn/HandleConn (text
// greeting, module listing, checksum seed write) and clientmaincmd.go
// (the SSH-piped side, which skips the text greeting and negotiates
// version directly over the wire).
package session

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/rsyncwire"
	"github.com/birsync/rsync/internal/version"
)

// DigestList is the ordered set of strong-digest names this implementation
// advertises, used both in the daemon greeting line and in the protocol >=
// 30 capability exchange. The pick among mutually supported digests ranks
// them by rsyncchecksum.PreferenceOrder, not by this order.
var DigestList = []string{"xxh3", "xxh64", "sha512", "sha256", "md5", "md4"}

// Greeting is the parsed form of an "@RSYNCD: <major>.<minor> [digests]"
// line exchanged at the start of a daemon connection.
type Greeting struct {
	Major   int
	Minor   int
	Digests []string
}

// WriteGreeting sends this side's daemon greeting line, per spec.md §4.6
// step 1/2 ("Server sends @RSYNCD: <major>.<minor> [digest_list]").
func WriteGreeting(w io.Writer, g Greeting) error {
	if len(g.Digests) == 0 {
		_, err := fmt.Fprintf(w, "@RSYNCD: %d.%d\n", g.Major, g.Minor)
		return err
	}
	_, err := fmt.Fprintf(w, "@RSYNCD: %d.%d %s\n", g.Major, g.Minor, strings.Join(g.Digests, " "))
	return err
}

// ReadGreeting reads and parses a daemon greeting line.
func ReadGreeting(rd *bufio.Reader) (Greeting, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return Greeting{}, err
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "@RSYNCD: ") {
		return Greeting{}, fmt.Errorf("session: invalid greeting %q", line)
	}
	body := strings.TrimPrefix(line, "@RSYNCD: ")
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return Greeting{}, fmt.Errorf("session: empty greeting body")
	}
	verParts := strings.SplitN(fields[0], ".", 2)
	major, err := strconv.Atoi(verParts[0])
	if err != nil {
		return Greeting{}, fmt.Errorf("session: bad version %q: %w", fields[0], err)
	}
	minor := 0
	if len(verParts) == 2 {
		minor, _ = strconv.Atoi(verParts[1])
	}
	g := Greeting{Major: major, Minor: minor}
	if len(fields) > 1 {
		g.Digests = fields[1:]
	}
	return g, nil
}

// NegotiatedVersion returns min(local, remote) clamped to the range this
// core speaks, per spec.md §4.6: "The negotiated protocol is min(client,
// server); both sides clamp to the range they support." A remote version
// below rsync.MinProtocolVersion is an error rather than being clamped.
func NegotiatedVersion(local, remote int) (int, error) {
	if remote < rsync.MinProtocolVersion {
		return 0, fmt.Errorf("session: remote protocol %d below minimum %d", remote, rsync.MinProtocolVersion)
	}
	v := local
	if remote < v {
		v = remote
	}
	return version.Clamp(v), nil
}

// NegotiateWire performs the SSH-piped (non-daemon) version exchange: a
// plain 4-byte int rather than the text greeting, as in the teacher's
// HandleConn negotiate branch and clientmaincmd's equivalent read.
func NegotiateWire(c *rsyncwire.Conn, local int, isServer bool) (int, error) {
	if isServer {
		remote, err := c.ReadInt32()
		if err != nil {
			return 0, err
		}
		if err := c.WriteInt32(int32(local)); err != nil {
			return 0, err
		}
		return NegotiatedVersion(local, int(remote))
	}
	if err := c.WriteInt32(int32(local)); err != nil {
		return 0, err
	}
	remote, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	return NegotiatedVersion(local, int(remote))
}
