// Package rsyncerr carries process exit codes alongside errors, so the
// session can aggregate non-fatal failures and map them to the canonical
// rsync exit code once, at session end.
package rsyncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	rsync "github.com/birsync/rsync"
)

// Error pairs an error with the exit code the process must end with if
// this error reaches the top level.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (code %d)", e.Err, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an exit-coded error.
func New(code int, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches code to err unless err already carries one. A nil err
// stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return err
	}
	return &Error{Code: code, Err: err}
}

// Code maps err to the process exit code: explicit codes win, timeouts map
// to the timeout code, network failures to the socket-I/O code, and
// anything else that survives to session end counts as a partial transfer.
func Code(err error) int {
	if err == nil {
		return rsync.ExitOK
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return rsync.ExitTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return rsync.ExitSocketIO
	}
	return rsync.ExitPartialTransfer
}
