// Package rsynctest provides test fixtures shared by the integration and
// rsyncclient test suites: a throwaway TCP rsync daemon backed by
// rsyncd.Server, a locator for a real rsync(1) binary to interop against,
// and helpers for building/verifying the kind of large and device-special
// files that exercise the delta and metadata paths.
package rsynctest

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/birsync/rsync/internal/testlogger"
	"github.com/birsync/rsync/rsyncd"
	"golang.org/x/sys/unix"
)

// Server is a running test-scoped rsync daemon.
type Server struct {
	// Port is the TCP port the daemon is listening on, as a decimal string
	// (e.g. "rsync://localhost:"+srv.Port+"/modname/").
	Port string
}

// Option configures New.
type Option func(*config)

type config struct {
	modules []rsyncd.Module
}

// InteropModule adds a module named "interop", rooted at path and writable,
// for tests that sync into or out of a real filesystem tree.
func InteropModule(path string) Option {
	return func(c *config) {
		c.modules = append(c.modules, rsyncd.Module{
			Name:     "interop",
			Path:     path,
			Writable: true,
		})
	}
}

// New starts an rsyncd.Server on an OS-assigned localhost TCP port and
// arranges for it to be torn down when t completes.
func New(t *testing.T, opts ...Option) *Server {
	t.Helper()

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := rsyncd.NewServer(cfg.modules, rsyncd.WithStderr(testlogger.New(t)))
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Serve(ctx, ln); err != nil && ctx.Err() == nil {
			t.Logf("rsynctest: Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	return &Server{Port: port}
}

// AnyRsync locates a real rsync(1) binary on PATH, for tests that interop
// against the reference implementation. It skips the test if none is found.
func AnyRsync(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("rsync")
	if err != nil {
		t.Skipf("skipping: no rsync(1) binary found on PATH: %v", err)
	}
	return path
}

const (
	largeHeadSize = 1 * 1024 * 1024
	largeBodySize = 512 * 1024
	largeEndSize  = 1 * 1024 * 1024
)

// WriteLargeDataFile writes dir/large-data-file as three concatenated
// regions, each filled with the repeated single byte from head, body, and
// end respectively. Large enough to require delta transfer, and structured
// so that changing only bodyPattern (as TestReceiverSync does) touches a
// small fraction of the file.
func WriteLargeDataFile(t *testing.T, dir string, head, body, end []byte) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, "large-data-file"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for _, region := range []struct {
		pattern []byte
		size    int
	}{
		{head, largeHeadSize},
		{body, largeBodySize},
		{end, largeEndSize},
	} {
		buf := make([]byte, region.size)
		for i := range buf {
			buf[i] = region.pattern[0]
		}
		if _, err := f.Write(buf); err != nil {
			t.Fatal(err)
		}
	}
}

// DataFileMatches verifies that path consists of the three regions
// WriteLargeDataFile would have written for head, body, and end.
func DataFileMatches(path string, head, body, end []byte) error {
	got, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	want := largeHeadSize + largeBodySize + largeEndSize
	if len(got) != want {
		return fmt.Errorf("unexpected size: got %d, want %d", len(got), want)
	}
	for _, region := range []struct {
		name    string
		pattern []byte
		offset  int
		size    int
	}{
		{"head", head, 0, largeHeadSize},
		{"body", body, largeHeadSize, largeBodySize},
		{"end", end, largeHeadSize + largeBodySize, largeEndSize},
	} {
		for i := 0; i < region.size; i++ {
			if b := got[region.offset+i]; b != region.pattern[0] {
				return fmt.Errorf("%s region: byte %d: got %#x, want %#x", region.name, i, b, region.pattern[0])
			}
		}
	}
	return nil
}

// CreateDummyDeviceFiles creates two character device nodes ("null" and
// "zero") under dir (which it creates), for tests verifying device metadata is preserved
// across a transfer. Skipped by callers when not running as root.
func CreateDummyDeviceFiles(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	devNull := unix.Mkdev(1, 3)  // /dev/null
	devZero := unix.Mkdev(1, 5)  // /dev/zero
	if err := unix.Mknod(filepath.Join(dir, "null"), unix.S_IFCHR|0666, int(devNull)); err != nil {
		t.Fatal(err)
	}
	if err := unix.Mknod(filepath.Join(dir, "zero"), unix.S_IFCHR|0666, int(devZero)); err != nil {
		t.Fatal(err)
	}
}

// VerifyDummyDeviceFiles checks that dst contains device nodes matching the
// ones CreateDummyDeviceFiles created in src, with the same major/minor
// numbers.
func VerifyDummyDeviceFiles(t *testing.T, src, dst string) {
	t.Helper()
	for _, name := range []string{"null", "zero"} {
		wantSt, err := os.Stat(filepath.Join(src, name))
		if err != nil {
			t.Fatal(err)
		}
		gotSt, err := os.Stat(filepath.Join(dst, name))
		if err != nil {
			t.Fatal(err)
		}
		wantStat, ok := wantSt.Sys().(*unix.Stat_t)
		if !ok {
			t.Fatalf("unexpected Sys() type %T for %s", wantSt.Sys(), name)
		}
		gotStat, ok := gotSt.Sys().(*unix.Stat_t)
		if !ok {
			t.Fatalf("unexpected Sys() type %T for %s", gotSt.Sys(), name)
		}
		if gotStat.Rdev != wantStat.Rdev {
			t.Errorf("%s: device number mismatch: got %d, want %d", name, gotStat.Rdev, wantStat.Rdev)
		}
	}
}
