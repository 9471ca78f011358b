package maincmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/birsync/rsync/internal/rsyncopts"
)

// readWriter adapts a separate read side and write side (e.g. the stdout
// and stdin pipes of a remote-shell subprocess) into a single
// io.ReadWriter, the shape internal/rsyncwire.Conn expects.
type readWriter struct {
	r io.Reader
	w io.Writer
}

func (rw *readWriter) Read(p []byte) (int, error)  { return rw.r.Read(p) }
func (rw *readWriter) Write(p []byte) (int, error) { return rw.w.Write(p) }

// checkForHostspec parses the rsync command-line source/destination syntax
// that names a remote host, mirroring rsync/main.c:check_for_hostspec.
// It recognizes:
//
//	rsync://[user@]host[:port]/path
//	[user@]host::path          (legacy double-colon daemon syntax)
//	[user@]host:path           (remote shell syntax)
//
// A plain local path is not a hostspec and returns a non-nil error.
func checkForHostspec(arg string) (host, path string, port int, err error) {
	if rest, ok := strings.CutPrefix(arg, "rsync://"); ok {
		hostport := rest
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			hostport = rest[:idx]
			path = rest[idx+1:]
		}
		host = hostport
		port = 873
		if idx := strings.LastIndexByte(hostport, ':'); idx >= 0 {
			host = hostport[:idx]
			p, perr := strconv.Atoi(hostport[idx+1:])
			if perr != nil {
				return "", "", 0, fmt.Errorf("invalid port in %q: %v", arg, perr)
			}
			port = p
		}
		return host, path, port, nil
	}

	if idx := strings.Index(arg, "::"); idx >= 0 {
		host = arg[:idx]
		path = arg[idx+2:]
		port = 873
		return host, path, port, nil
	}

	// A single colon introduces a remote-shell hostspec, but a Windows-style
	// drive letter ("C:\foo") or an unrelated colon inside a local path must
	// not be mistaken for one; rsync requires the part before the colon to
	// look like a plausible host (no slashes).
	if idx := strings.IndexByte(arg, ':'); idx > 0 {
		candidate := arg[:idx]
		if !strings.ContainsAny(candidate, `/\`) {
			return candidate, arg[idx+1:], 0, nil
		}
	}

	return "", "", 0, fmt.Errorf("%q is not a hostspec", arg)
}

// serverOptions reconstructs the flag list passed to a `rsync --server`
// invocation on the other end of a remote shell, mirroring the relevant
// part of rsync/options.c:server_options. Only the flags this
// implementation understands are forwarded; the counterpart's own
// ParseArguments call only needs to agree with what GenerateFiles/RecvFiles
// actually negotiate over the wire, not with every tridge rsync flag.
func serverOptions(opts *rsyncopts.Options) []string {
	args := []string{"--server"}
	if opts.Sender() {
		args = append(args, "--sender")
	}
	if opts.Verbose() {
		args = append(args, "-v")
	}
	if opts.DryRun() {
		args = append(args, "-n")
	}
	if opts.PreserveLinks() {
		args = append(args, "-l")
	}
	if opts.PreservePerms() {
		args = append(args, "-p")
	}
	if opts.PreserveMTimes() {
		args = append(args, "-t")
	}
	if opts.PreserveUid() {
		args = append(args, "-o")
	}
	if opts.PreserveGid() {
		args = append(args, "-g")
	}
	if opts.PreserveDevices() {
		args = append(args, "-D")
	}
	if opts.PreserveSpecials() {
		args = append(args, "--specials")
	}
	if opts.PreserveHardLinks() {
		args = append(args, "-H")
	}
	if opts.Recurse() {
		args = append(args, "-r")
	}
	if opts.DeleteMode() {
		args = append(args, "--delete")
	}
	if opts.AlwaysChecksum() {
		args = append(args, "-c")
	}
	return args
}
