// Package maincmd implements a subset of the '$ rsync' CLI surface, namely that it can:
//   - serve as a server daemon over TCP or over a remote shell (stdin/stdout)
//   - act as "client" CLI for connecting to the server
//   - both "client" and "server" can act as the sender and the receiver
//
// Spawning an SSH subprocess to reach a remote shell, and loading daemon
// module configuration from a file, are both out of scope here (spec.md
// ss1 Non-goals); the daemon's module list instead comes directly from the
// -bi.modulemap flag.
package maincmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/birsync/rsync/internal/restrict"
	"github.com/birsync/rsync/internal/rsyncopts"
	"github.com/birsync/rsync/internal/rsyncos"
	"github.com/birsync/rsync/internal/rsyncstats"
	"github.com/birsync/rsync/rsyncd"

	// For profiling and debugging
	_ "net/http/pprof"
)

func version(osenv *rsyncos.Env) {
	osenv.Logf("birsync rsync, pid %d", os.Getpid())
}

// Main is the entry point shared by cmd/birsync and by tests that re-exec
// the test binary as a remote-shell or daemon subprocess (see TestMain in
// integration/receiver). It owns argument parsing and dispatches to one of
// the four rsync(1) calling conventions: daemon-over-remote-shell,
// server/command mode, plain client, or TCP daemon listener.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (*rsyncstats.TransferStats, error) {
	osenv := &rsyncos.Env{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}
	osenv.Logf("Main(args=%q)", args)
	pc, err := rsyncopts.ParseArguments(osenv, args[1:])
	if err != nil {
		if strings.Contains(err.Error(), "--bi.") {
			return nil, fmt.Errorf("%v (you need to specify --daemon before flags starting with --bi are available)", err)
		}
		return nil, err
	}
	opts := pc.Options
	remaining := pc.RemainingArgs

	// calling convention: daemon mode over remote shell (also builtin SSH)
	// Example: --server --daemon .
	if opts.Daemon() && opts.Server() {
		srv, err := newDaemonServer(osenv, opts)
		if err != nil {
			return nil, err
		}
		conn := srv.NewConnection(osenv.Stdin, osenv.Stdout)
		return nil, srv.HandleDaemonConn(ctx, *osenv, conn, nil)
	}

	// calling convention: command mode (over remote shell or locally)
	// Example: --server --sender -vvvvlogDtpre.iLsfxCIvu . .
	if opts.Server() {
		srv, err := rsyncd.NewServer(nil, rsyncd.WithStderr(osenv.Stderr))
		if err != nil {
			return nil, err
		}

		if len(remaining) < 2 {
			return nil, fmt.Errorf("invalid args: at least one directory required")
		}
		if got, want := remaining[0], "."; got != want {
			return nil, fmt.Errorf("protocol error: got %q, expected %q", got, want)
		}
		paths := remaining[1:]
		if opts.Verbose() {
			osenv.Logf("paths: %q", paths)
		}
		var roDirs, rwDirs []string
		if opts.Sender() {
			roDirs = append(roDirs, paths...)
		} else {
			for _, path := range paths {
				if err := os.MkdirAll(path, 0755); err != nil {
					return nil, err
				}
			}
			rwDirs = append(rwDirs, paths...)
		}
		if osenv.Restrict() {
			if err := restrict.MaybeFileSystem(roDirs, rwDirs); err != nil {
				return nil, err
			}
		}
		conn := srv.NewConnection(osenv.Stdin, osenv.Stdout)
		return nil, srv.HandleConn(nil, conn, paths, opts, true, 0)
	}

	if !opts.Daemon() {
		if !osenv.DontRestrict {
			osenv.DontRestrict = opts.GokrazyClient.DontRestrict == 1
		}
		return clientMain(ctx, *osenv, opts, remaining)
	}

	// daemon_main(): start a daemon in TCP listening mode, configured
	// directly from -bi.listen / -bi.modulemap (no config file).
	if opts.GokrazyDaemon.Listen == "" {
		return nil, fmt.Errorf("-bi.listen not specified")
	}

	modules, err := modulesFromFlag(opts.GokrazyDaemon.ModuleMap)
	if err != nil {
		return nil, err
	}
	version(osenv)
	osenv.Logf("%d rsync modules configured in total", len(modules))
	for _, mod := range modules {
		osenv.Logf("rsync module %q with path %s configured", mod.Name, mod.Path)
	}

	if monitoringListen := opts.GokrazyDaemon.MonitoringListen; monitoringListen != "" {
		go func() {
			osenv.Logf("HTTP server for monitoring listening on http://%s/debug/pprof", monitoringListen)
			if err := http.ListenAndServe(monitoringListen, nil); err != nil {
				osenv.Logf("-monitoring_listen: %v", err)
			}
		}()
	}

	srv, err := rsyncd.NewServer(modules, rsyncd.WithStderr(osenv.Stderr))
	if err != nil {
		return nil, err
	}
	var ln net.Listener
	ln, err = net.Listen("tcp", opts.GokrazyDaemon.Listen)
	if err != nil {
		return nil, err
	}

	osenv.Logf("rsync daemon listening on rsync://%s", ln.Addr())
	return nil, srv.Serve(ctx, ln)
}

// newDaemonServer builds the rsyncd.Server used for both the remote-shell
// daemon calling convention ("--server --daemon") and the TCP listener, its
// module list coming from -bi.modulemap since config-file loading is out
// of scope.
func newDaemonServer(osenv *rsyncos.Env, opts *rsyncopts.Options) (*rsyncd.Server, error) {
	modules, err := modulesFromFlag(opts.GokrazyDaemon.ModuleMap)
	if err != nil {
		return nil, err
	}
	rsyncdOpts := []rsyncd.Option{
		rsyncd.WithStderr(osenv.Stderr),
	}
	if osenv.DontRestrict {
		rsyncdOpts = append(rsyncdOpts, rsyncd.DontRestrict())
	}
	return rsyncd.NewServer(modules, rsyncdOpts...)
}

// modulesFromFlag parses the single "name=path" -bi.modulemap flag into a
// module list. An empty flag yields no modules (listing requests still
// work; transfer requests against a named module will fail with "no such
// module").
func modulesFromFlag(moduleMap string) ([]rsyncd.Module, error) {
	if moduleMap == "" {
		return nil, nil
	}
	parts := strings.SplitN(moduleMap, "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed -bi.modulemap parameter %q, expected <modulename>=<path>", moduleMap)
	}
	return []rsyncd.Module{{
		Name:     parts[0],
		Path:     parts[1],
		Writable: true,
	}}, nil
}
