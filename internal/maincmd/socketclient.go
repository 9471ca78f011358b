package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/log"
	"github.com/birsync/rsync/internal/rsyncerr"
	"github.com/birsync/rsync/internal/rsyncopts"
	"github.com/birsync/rsync/internal/rsyncos"
	"github.com/birsync/rsync/internal/rsyncstats"
	"github.com/birsync/rsync/internal/rsyncwire"
	"github.com/birsync/rsync/internal/session"
)

// rsync/main.c:start_socket_client
func socketClient(ctx context.Context, osenv rsyncos.Std, opts *rsyncopts.Options, host, path string, port int, other string) (*rsyncstats.TransferStats, error) {
	var d net.Dialer
	if ct := opts.ConnectTimeoutSeconds(); ct > 0 {
		d.Timeout = time.Duration(ct) * time.Second
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, rsyncerr.New(rsync.ExitConnTimeout, "connecting to %s: %v", addr, err)
		}
		return nil, fmt.Errorf("connecting to %s: %v", addr, err)
	}
	defer conn.Close()

	module := path
	if idx := strings.IndexByte(module, '/'); idx > -1 {
		module = module[:idx]
	}

	done, negotiatedProtocol, err := startInbandExchange(osenv, opts, conn, module, path)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, nil
	}

	return ClientRun(osenv, opts, conn, []string{other}, negotiatedProtocol)
}

// startInbandExchange performs the daemon text protocol exchanged before
// the binary rsync wire protocol begins (spec.md §4.6): the "@RSYNCD:"
// greeting and version negotiation, the module name and its ACL/auth
// response, and finally the server-argument list that stands in for what
// an ssh-invoked "rsync --server" would have received on its own argv.
//
// It returns done=true when the exchange itself satisfied the request (a
// bare module listing), in which case there is no further transfer to run.
//
// Grounded on rsyncd.go's HandleDaemonConn, which implements the server
// side of this same exchange.
func startInbandExchange(osenv rsyncos.Std, opts *rsyncopts.Options, conn io.ReadWriter, module, path string) (done bool, negotiatedProtocol int, err error) {
	crd, cwr := rsyncwire.CounterPair(conn, conn)
	rd := bufio.NewReader(crd)

	serverGreeting, err := session.ReadGreeting(rd)
	if err != nil {
		return false, 0, fmt.Errorf("reading daemon greeting: %v", err)
	}
	if err := session.WriteGreeting(cwr, session.Greeting{
		Major:   rsync.ProtocolVersion,
		Digests: session.DigestList,
	}); err != nil {
		return false, 0, err
	}
	negotiatedProtocol, err = session.NegotiatedVersion(rsync.ProtocolVersion, serverGreeting.Major)
	if err != nil {
		return false, 0, err
	}
	if opts.Verbose() {
		log.Printf("negotiated protocol %d with daemon (offered %d.%d, digests %v)",
			negotiatedProtocol, serverGreeting.Major, serverGreeting.Minor, serverGreeting.Digests)
	}

	if module == "" {
		if _, err := io.WriteString(cwr, "#list\n"); err != nil {
			return false, 0, err
		}
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return false, 0, err
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "@RSYNCD: EXIT" {
				break
			}
			fmt.Fprintln(osenv.Stdout, line)
		}
		return true, negotiatedProtocol, nil
	}

	if _, err := fmt.Fprintf(cwr, "%s\n", module); err != nil {
		return false, 0, err
	}

	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return false, 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "@ERROR") {
			// The daemon refused the module (unknown, access denied, or
			// auth failure); the canonical exit code for a failed
			// client-server startup applies.
			return false, 0, rsyncerr.New(rsync.ExitUnsupported, "daemon: %s", line)
		}
		if line == "@RSYNCD: OK" {
			break
		}
		// MOTD or other informational lines preceding the OK.
		fmt.Fprintln(osenv.Stdout, line)
	}

	flags := serverOptions(opts)
	flags = append(flags, ".", path)
	for _, flag := range flags {
		if _, err := fmt.Fprintf(cwr, "%s\n", flag); err != nil {
			return false, 0, err
		}
	}
	if _, err := io.WriteString(cwr, "\n"); err != nil {
		return false, 0, err
	}

	return false, negotiatedProtocol, nil
}
