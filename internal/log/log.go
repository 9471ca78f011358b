// Package log is a minimal, allocation-light wrapper around the standard
// library's log package, matching the teacher's internal/log usage
// throughout internal/maincmd: a package-level default logger plus
// per-session loggers constructed with log.New(w).
package log

import (
	"io"
	stdlog "log"
	"os"
)

var std = stdlog.New(os.Stderr, "", stdlog.LstdFlags)

// Printf logs to the process-wide default logger.
func Printf(format string, args ...any) { std.Printf(format, args...) }

// Logger is a per-session logger, typically built from a connection's
// stderr so diagnostics from concurrent sessions don't interleave on a
// shared process-global writer.
type Logger struct {
	l       *stdlog.Logger
	verbose bool
}

// New returns a Logger writing to w with no special prefix, mirroring
// log.New(osenv.Stderr) as used in clientmaincmd.go.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{l: stdlog.New(w, "", stdlog.LstdFlags)}
}

// SetVerbose toggles whether Debugf actually writes output.
func (l *Logger) SetVerbose(v bool) { l.verbose = v }

func (l *Logger) Printf(format string, args ...any) { l.l.Printf(format, args...) }

// Debugf only logs when verbose output was requested, avoiding the
// teacher's repeated "if rt.Opts.Verbose { ... }" guards at every call site.
func (l *Logger) Debugf(format string, args ...any) {
	if l.verbose {
		l.l.Printf(format, args...)
	}
}
