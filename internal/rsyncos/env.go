// Package rsyncos abstracts the operating-system surface the core needs:
// standard streams, logging, and the restrict (sandboxing) toggle. Argument
// parsing and SSH subprocess spawning live above this layer; uid/gid
// database lookups are consumed through the IDLookup capability interface
// rather than called directly, per spec.md §1.
package rsyncos

import (
	"fmt"
	"io"
	"os"
)

// IDLookup resolves numeric ids to names and back, standing in for
// /etc/passwd, /etc/group or an equivalent directory service. Production
// callers wire this to os/user; tests can substitute a fake.
type IDLookup interface {
	NameForUID(uid int32) (string, bool)
	NameForGID(gid int32) (string, bool)
	UIDForName(name string) (int32, bool)
	GIDForName(name string) (int32, bool)
}

// Sideband receives out-of-band multiplexed messages (MSG_INFO, MSG_ERROR,
// MSG_WARNING, ...) so that a reader blocked on the data stream never
// observes them inline. See spec.md §4.1 and §9 "Message pipelining".
type Sideband interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

// Env bundles everything a session needs from its host process.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	IDs      IDLookup
	Sideband Sideband

	// DontRestrict disables internal/restrict sandboxing, e.g. because the
	// parent process already restricted this one.
	DontRestrict bool
}

// Restrict reports whether sandboxing should be applied.
func (e *Env) Restrict() bool { return !e.DontRestrict }

// Logf writes a diagnostic line to Stderr. It never returns an error: a
// logging failure must never abort a transfer.
func (e *Env) Logf(format string, args ...any) {
	w := e.Stderr
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Std is the minimal subset of Env that command wiring needs; kept as its
// own name because the teacher's internal/maincmd referred to rsyncos.Std
// as the parameter type for clientMain/rsyncMain.
type Std = Env
