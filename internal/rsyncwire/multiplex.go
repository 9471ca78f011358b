package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Tag identifies the kind of payload carried by a multiplexed frame.
type Tag byte

// Tags mirror the constants in the root rsync package (MsgData, MsgInfo,
// ...); kept as a distinct byte type here so frame headers can't be
// confused with arbitrary ints.
const (
	TagData    Tag = 0
	TagErrXfer Tag = 1
	TagInfo    Tag = 2
	TagError   Tag = 3
	TagWarning Tag = 4
)

// MultiplexWriter wraps an underlying writer and tags every Write call as
// data (tag 0). Out-of-band messages use WriteTagged directly.
//
// Corresponds to rsync/io.c:mplex_write / the teacher's abandoned
// multiplexWriter prototype in rsyncd/rsyncd.go, generalized to support all
// tags instead of hard-coding tag 7.
type MultiplexWriter struct {
	W io.Writer
}

func (w *MultiplexWriter) Write(p []byte) (int, error) {
	if err := w.WriteTagged(TagData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteTagged writes one frame with an explicit tag. rsync caps frame
// payloads well under 2^24 bytes; callers that might exceed that (data
// writes) should chunk before calling WriteTagged, but Write above is safe
// for typical I/O buffer sizes.
func (w *MultiplexWriter) WriteTagged(tag Tag, p []byte) error {
	if len(p) >= 1<<24 {
		return fmt.Errorf("rsyncwire: multiplex frame too large (%d bytes)", len(p))
	}
	header := uint32(len(p)) | uint32(tag)<<24
	var hb [4]byte
	binary.LittleEndian.PutUint32(hb[:], header)
	if _, err := w.W.Write(hb[:]); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := w.W.Write(p)
	return err
}

// Sideband receives frames tagged with anything other than TagData.
type Sideband interface {
	Sideband(tag Tag, payload []byte)
}

// MultiplexReader demultiplexes a tagged stream: Read returns only TagData
// bytes, transparently consuming and dispatching any interleaved sideband
// frames to Sideband without ever returning them to the caller. This lets
// any reader blocked on "data" (e.g. a bufio.Reader wrapping this type)
// transparently observe error/info frames via the side channel instead of
// corrupting the data stream, per spec.md §9.
type MultiplexReader struct {
	R        io.Reader
	Sideband Sideband

	pending []byte // unread remainder of the current data frame
}

func (r *MultiplexReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		tag, payload, err := r.readFrame()
		if err != nil {
			return 0, err
		}
		if tag == TagData {
			r.pending = payload
			continue
		}
		if r.Sideband != nil {
			r.Sideband.Sideband(tag, payload)
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *MultiplexReader) readFrame() (Tag, []byte, error) {
	var hb [4]byte
	if _, err := io.ReadFull(r.R, hb[:]); err != nil {
		return 0, nil, err
	}
	header := binary.LittleEndian.Uint32(hb[:])
	tag := Tag(header >> 24)
	length := header & 0x00FFFFFF
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r.R, payload); err != nil {
			return 0, nil, err
		}
	}
	return tag, payload, nil
}

// FuncSideband adapts a plain function to the Sideband interface, useful
// for wiring straight into an rsyncos.Env's Info/Warning/Error sinks.
type FuncSideband func(tag Tag, payload []byte)

func (f FuncSideband) Sideband(tag Tag, payload []byte) { f(tag, payload) }
