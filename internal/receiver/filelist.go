package receiver

import (
	"fmt"

	"github.com/birsync/rsync/internal/flist"
)

// receiverIDResolver is the identity Resolver/reverse-resolver used when no
// os/user-backed rsyncos.IDLookup is wired in: numeric ids pass through
// unchanged. Production wiring can replace this with one backed by
// rt.Env.IDs once a concrete lookup is plugged in.
type receiverIDResolver struct{}

func (receiverIDResolver) Name(id int32) (string, bool) { return "", false }

// ReceiveFileList reads the file list the sender produces (flist.Codec
// entries terminated by the zero flag, followed by uid/gid id lists),
// sorts and dedups it per spec.md §4.4, and returns it ready for
// GenerateFiles/RecvFiles to index by NDX.
//
// Every entry is first fed through an flist.Builder in delivery order.
// This implementation's sender always transmits the full list in one pass
// rather than the true INC_RECURSE wire behavior of expanding a directory
// only once the generator asks for it (see DESIGN.md's internal/flist
// entry), but the builder still enforces the protocol invariant
// INC_RECURSE depends on: every non-root entry's parent directory must
// have already been delivered. A non-zero Pending() after the terminator
// means some entry's parent never arrived.
//
// Grounded on the teacher's receiver.go/do.go, which reference this method
// (rt.ReceiveFileList()) without it being present in the retrieval pack;
// reconstructed here atop internal/flist's wire codec built for this
// transfer.
func (rt *Transfer) ReceiveFileList() ([]*File, error) {
	cd := &flist.Codec{
		PreserveUID:       rt.Opts.PreserveUid,
		PreserveGID:       rt.Opts.PreserveGid,
		PreserveDevices:   rt.Opts.PreserveDevices,
		PreserveSpecials:  rt.Opts.PreserveSpecials,
		PreserveLinks:     rt.Opts.PreserveLinks,
		PreserveHardlinks: rt.Opts.PreserveHardLinks,
	}

	builder := flist.NewBuilder()
	for {
		f, done, err := cd.ReadEntry(rt.Conn)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		builder.Add(f)
	}
	if n := builder.Pending(); n > 0 {
		return nil, fmt.Errorf("receiver: file list has %d entries whose parent directory never arrived", n)
	}
	files := builder.Drain()

	if rt.Opts.PreserveUid {
		if _, err := flist.ReadIDList(rt.Conn, nil, false); err != nil {
			return nil, err
		}
	}
	if rt.Opts.PreserveGid {
		if _, err := flist.ReadIDList(rt.Conn, nil, false); err != nil {
			return nil, err
		}
	}

	return flist.SortAndClean(files), nil
}
