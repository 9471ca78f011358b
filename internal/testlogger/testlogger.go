// Package testlogger adapts *testing.T into an io.Writer, so that code
// expecting an os.Stderr-shaped sink (rsyncd.WithStderr, rsyncos.Env.Stderr)
// can be pointed at a test's own log instead: output then shows up
// attributed to the failing subtest, in the right order relative to other
// t.Logf calls, even under -v or -race.
package testlogger

import (
	"io"
	"testing"
)

// writer implements io.Writer by forwarding each Write to t.Logf, trimming
// the trailing newline most loggers emit (t.Logf adds its own).
type writer struct {
	t *testing.T
}

// New returns an io.Writer that writes each line it receives to t.Logf.
func New(t *testing.T) io.Writer {
	return &writer{t: t}
}

func (w *writer) Write(p []byte) (int, error) {
	n := len(p)
	for n > 0 && p[n-1] == '\n' {
		n--
	}
	w.t.Logf("%s", p[:n])
	return len(p), nil
}
