// Package version centralizes the protocol-version-gated behavior tables
// this core needs beyond the raw min/max bounds in the root package: at
// which protocol version each wire shape (multiplexing, delta NDX, the
// compat-flag exchange, file-list timing stats, the final goodbye) switches
// on.
package version

import (
	"runtime/debug"

	rsync "github.com/birsync/rsync"
)

// BuildVersion is set via -ldflags "-X .../internal/version.BuildVersion=..."
// by packagers; the zero value falls back to the Go module's own build info
// (module version plus VCS revision), following the same convention as
// perkeep's pkg/buildinfo.
var BuildVersion string

// Read returns a human-readable version string for --version output and
// daemon help text.
func Read() string {
	if BuildVersion != "" {
		return BuildVersion
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	v := info.Main.Version
	if v == "" || v == "(devel)" {
		v = "devel"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return v + " (" + s.Value + ")"
		}
	}
	return v
}

// SupportsMultiplex reports whether protocol p uses multiplexed framing
// for server-to-client data (spec.md §4.6, §4.1).
func SupportsMultiplex(p int) bool { return p >= 30 }

// SupportsDeltaNdx reports whether protocol p uses the delta-encoded NDX
// scheme instead of a flat 4-byte index.
func SupportsDeltaNdx(p int) bool { return p >= 30 }

// SupportsCompatFlags reports whether protocol p exchanges a compat
// bitfield at all; below 30 there is none.
func SupportsCompatFlags(p int) bool { return p >= 30 }

// SupportsFlistTimes reports whether flist_buildtime_ms/flist_xfertime_ms
// are present in the end-of-transfer statistics.
func SupportsFlistTimes(p int) bool { return p >= 29 }

// SupportsFinalGoodbye reports whether the sender/receiver exchange one
// extra NDX_DONE pair after statistics.
func SupportsFinalGoodbye(p int) bool { return p >= 31 }

// Clamp bounds p to the range this implementation speaks.
func Clamp(p int) int {
	switch {
	case p < rsync.MinProtocolVersion:
		return rsync.MinProtocolVersion
	case p > rsync.MaxProtocolVersion:
		return rsync.MaxProtocolVersion
	default:
		return p
	}
}
