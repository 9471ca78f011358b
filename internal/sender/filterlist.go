package sender

import "github.com/birsync/rsync/internal/rsyncwire"

// FilterList is the legacy exclusion-pattern list exchanged once at the
// start of a delete-capable transfer, before the file list itself: a
// sequence of (length, pattern bytes) pairs terminated by a zero length.
// openrsync's list is always empty; tridge rsync and this implementation
// send one entry per --exclude/--filter rule applied at the top level.
//
// Grounded on the constant inlined in the teacher's now-removed
// internal/rsyncd prototype (exclusionListEnd = 0) and the corresponding
// "receive the exclusion list (openrsync's is always empty)" comment kept
// in rsyncd/rsyncd.go.
type FilterList struct {
	Filters []string
}

const filterListEnd = 0

// RecvFilterList reads the wire format SendFilterList produces.
func RecvFilterList(c *rsyncwire.Conn) (*FilterList, error) {
	var fl FilterList
	for {
		n, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		if n == filterListEnd {
			return &fl, nil
		}
		pattern, err := c.ReadN(int(n))
		if err != nil {
			return nil, err
		}
		fl.Filters = append(fl.Filters, string(pattern))
	}
}

// SendFilterList is the send-side counterpart of RecvFilterList.
func SendFilterList(c *rsyncwire.Conn, fl *FilterList) error {
	if fl != nil {
		for _, pattern := range fl.Filters {
			if err := c.WriteInt32(int32(len(pattern))); err != nil {
				return err
			}
			if err := c.WriteString(pattern); err != nil {
				return err
			}
		}
	}
	return c.WriteInt32(filterListEnd)
}
