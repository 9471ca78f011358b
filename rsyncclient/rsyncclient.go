// Package rsyncclient is a library entry point for embedding the rsync
// client role without going through the full maincmd CLI surface: callers
// hand it an already-connected io.ReadWriter (a subprocess pipe, a TCP
// socket, an in-memory pipe for tests) and a destination/source path list.
//
// It is a thin wrapper around internal/maincmd.ClientRun, the same code
// path the "rsync" binary's command-line mode uses once argument parsing
// and remote-shell/daemon connection setup are done; this package exists
// so embedders don't have to replicate that setup for the common case of
// "I already have a connection, just speak the protocol over it".
package rsyncclient

import (
	"context"
	"fmt"
	"io"

	"github.com/birsync/rsync/internal/maincmd"
	"github.com/birsync/rsync/internal/rsyncopts"
	"github.com/birsync/rsync/internal/rsyncos"
	"github.com/birsync/rsync/internal/rsyncstats"
)

// Client runs one rsync client-role transfer (as either receiver or
// sender, per the options it was constructed with) over a caller-supplied
// connection.
type Client struct {
	opts   *rsyncopts.Options
	stderr io.Writer
}

// Option configures a Client at construction time.
type Option func(*config)

type config struct {
	sender bool
	stderr io.Writer
}

// WithSender makes the client act as the sender (the remote rsync process
// reads from us), mirroring the rsync(1) "--sender" server flag. The
// default is to act as the receiver.
func WithSender() Option {
	return func(c *config) { c.sender = true }
}

// WithStderr directs diagnostic logging to w instead of the default
// (os.Stderr, via rsyncos.Env's zero value).
func WithStderr(w io.Writer) Option {
	return func(c *config) { c.stderr = w }
}

// New parses rsync(1)-style command-line flags (as would follow "rsync" on
// the command line, e.g. "-av", "--delete") and returns a Client ready to
// Run a transfer. args must not include the source/destination paths;
// those are supplied to Run.
func New(args []string, opts ...Option) (*Client, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	serverArgs := append([]string{"--server"}, args...)
	if cfg.sender {
		serverArgs = append(serverArgs, "--sender")
	}
	pc, err := rsyncopts.ParseArguments(nil, serverArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing client arguments: %v", err)
	}

	return &Client{opts: pc.Options, stderr: cfg.stderr}, nil
}

// Run negotiates the protocol over rw and performs one transfer: receiving
// into, or sending from, the single path in paths. Only one path is
// supported, matching internal/maincmd's current single-source restriction.
func (cl *Client) Run(ctx context.Context, rw io.ReadWriter, paths []string) (*rsyncstats.TransferStats, error) {
	if len(paths) != 1 {
		return nil, fmt.Errorf("rsyncclient: expected exactly one path, got %q", paths)
	}

	stderr := cl.stderr
	if stderr == nil {
		stderr = io.Discard
	}
	osenv := rsyncos.Std{Stderr: stderr}

	const knownProtocol = 0 // negotiate over the wire
	return maincmd.ClientRun(osenv, cl.opts, rw, paths, knownProtocol)
}
