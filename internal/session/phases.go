package session

import (
	"fmt"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/rsyncstats"
	"github.com/birsync/rsync/internal/rsyncwire"
	"github.com/birsync/rsync/internal/version"
)

// WriteChecksumSeed sends the session's checksum seed, a plain int32 under
// an SSH pipe and a multiplexed frame under a protocol >= 30 daemon
// connection (spec.md §4.6 "Checksum seed"). The caller is responsible for
// having already switched c.Writer to a rsyncwire.MultiplexWriter when
// daemon mode and protocol >= 30 require it.
func WriteChecksumSeed(c *rsyncwire.Conn, seed int32) error {
	return c.WriteInt32(seed)
}

func ReadChecksumSeed(c *rsyncwire.Conn) (int32, error) {
	return c.ReadInt32()
}

// PhaseCount returns how many NDX_DONE phases the negotiated protocol
// version uses: one before 29, two from 29 onward (spec.md §4.6
// "Multi-phase transfer").
func PhaseCount(protocol int) int {
	if version.SupportsFlistTimes(protocol) {
		return 2
	}
	return 1
}

// AwaitPhaseEnd reads NDX_DONE markers until the phase boundary, echoing
// them back as upstream rsync's generator does between phases. last
// indicates this is the final phase, after which no echo is sent.
func AwaitPhaseEnd(c *rsyncwire.Conn, last bool) error {
	ndx, err := c.ReadNdx()
	if err != nil {
		return err
	}
	if ndx != rsync.NdxDone {
		// Caller is expected to have already drained real file indexes;
		// reaching here with anything else is a protocol violation.
		return fmt.Errorf("session: expected NDX_DONE, got index %d", ndx)
	}
	if !last {
		return c.WriteNdx(rsync.NdxDone)
	}
	return nil
}

// WriteStats sends the end-of-transfer statistics in varlong form.
func WriteStats(c *rsyncwire.Conn, protocol int, s rsyncstats.TransferStats) error {
	if err := rsyncwire.WriteVarlong(c.Writer, s.Read, 3); err != nil {
		return err
	}
	if err := rsyncwire.WriteVarlong(c.Writer, s.Written, 3); err != nil {
		return err
	}
	if err := rsyncwire.WriteVarlong(c.Writer, s.Size, 3); err != nil {
		return err
	}
	if version.SupportsFlistTimes(protocol) {
		if err := rsyncwire.WriteVarlong(c.Writer, s.FlistBuildTimeMs, 3); err != nil {
			return err
		}
		if err := rsyncwire.WriteVarlong(c.Writer, s.FlistXferTimeMs, 3); err != nil {
			return err
		}
	}
	return nil
}

func ReadStats(c *rsyncwire.Conn, protocol int) (rsyncstats.TransferStats, error) {
	var s rsyncstats.TransferStats
	var err error
	if s.Read, err = rsyncwire.ReadVarlong(c.Reader, 3); err != nil {
		return s, err
	}
	if s.Written, err = rsyncwire.ReadVarlong(c.Reader, 3); err != nil {
		return s, err
	}
	if s.Size, err = rsyncwire.ReadVarlong(c.Reader, 3); err != nil {
		return s, err
	}
	if version.SupportsFlistTimes(protocol) {
		if s.FlistBuildTimeMs, err = rsyncwire.ReadVarlong(c.Reader, 3); err != nil {
			return s, err
		}
		if s.FlistXferTimeMs, err = rsyncwire.ReadVarlong(c.Reader, 3); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Goodbye performs the final NDX_DONE exchange: for protocol >= 31 the
// sender echoes NDX_DONE once and the receiver sends one final NDX_DONE
// (spec.md §4.6 "Then a goodbye exchange").
func Goodbye(c *rsyncwire.Conn, protocol int, isSender bool) error {
	if !version.SupportsFinalGoodbye(protocol) {
		return nil
	}
	if isSender {
		return c.WriteNdx(rsync.NdxDone)
	}
	ndx, err := c.ReadNdx()
	if err != nil {
		return err
	}
	if ndx != rsync.NdxDone {
		return fmt.Errorf("session: expected NDX_DONE, got index %d", ndx)
	}
	return c.WriteNdx(rsync.NdxDone)
}
