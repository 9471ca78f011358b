package rsyncerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	rsync "github.com/birsync/rsync"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, rsync.ExitOK},
		{"explicit code", New(rsync.ExitUnsupported, "no xattrs here"), rsync.ExitUnsupported},
		{"wrapped explicit code", fmt.Errorf("outer: %w", New(rsync.ExitSocketIO, "broken pipe")), rsync.ExitSocketIO},
		{"deadline", context.DeadlineExceeded, rsync.ExitTimeout},
		{"anything else", errors.New("basis file vanished"), rsync.ExitPartialTransfer},
	}
	for _, tc := range tests {
		if got := Code(tc.err); got != tc.want {
			t.Errorf("%s: Code() = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := New(rsync.ExitAccessDenied, "module denied")
	wrapped := Wrap(rsync.ExitPartialTransfer, fmt.Errorf("session: %w", inner))
	if got := Code(wrapped); got != rsync.ExitAccessDenied {
		t.Errorf("Wrap overrode an existing code: got %d, want %d", got, rsync.ExitAccessDenied)
	}
	if Wrap(rsync.ExitPartialTransfer, nil) != nil {
		t.Error("Wrap(nil) != nil")
	}
}
