package receiver

import (
	"context"

	rsync "github.com/birsync/rsync"
	"github.com/birsync/rsync/internal/rsyncerr"
	"github.com/birsync/rsync/internal/rsyncstats"
	"github.com/birsync/rsync/internal/rsyncwire"
	"github.com/birsync/rsync/internal/session"
	"golang.org/x/sync/errgroup"
)

// rsync/main.c:do_recv
func (rt *Transfer) Do(c *rsyncwire.Conn, fileList []*File, noReport bool) (stats *rsyncstats.TransferStats, err error) {
	// A fatal error anywhere below aborts the session and rolls back the
	// filesystem entries created since it started (spec.md §4.7). The
	// aggregate partial-transfer error returned after a completed session
	// is non-fatal and must not undo successfully transferred files, so
	// the guard disarms once the end-of-session exchange is done.
	sessionDone := false
	defer func() {
		if err != nil && !sessionDone {
			rt.Rollback()
		}
	}()

	var deleteQueue deletionQueue

	// DeleteBefore runs the sweep ahead of the transfer; every other timing
	// mode (during/after/delay) runs it once transfer work has finished,
	// with DeleteDelay additionally queuing removals for a final flush
	// rather than removing them immediately (spec.md §4.7 "Delete timing").
	if rt.Opts.DeleteMode && rt.Opts.DeleteTiming == DeleteBefore {
		if err := rt.deleteFiles(fileList, rt.Filter, &deleteQueue); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return rt.GenerateFiles(fileList)
	})
	eg.Go(func() error {
		// Ensure we don’t block on the receiver when the generator returns an
		// error.
		errChan := make(chan error)
		go func() {
			errChan <- rt.RecvFiles(fileList)
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		}
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if rt.Opts.DeleteMode && rt.Opts.DeleteTiming != DeleteBefore {
		if err := rt.deleteFiles(fileList, rt.Filter, &deleteQueue); err != nil {
			return nil, err
		}
	}
	if rt.Opts.DeleteMode && rt.Opts.DeleteTiming == DeleteDelay {
		if err := deleteQueue.flush(rt.Opts.DryRun); err != nil {
			return nil, err
		}
	}

	if !noReport {
		stats, err = rt.report(c)
		if err != nil {
			return nil, err
		}

		// Final goodbye: for protocol >= 31 there is one extra NDX_DONE
		// round-trip beyond the plain -1 sentinel (spec.md §4.6 "Then a
		// goodbye exchange"); session.Goodbye gates on rt.protocol(). This
		// only applies when we actually read the peer's stats above —
		// noReport callers have no stats round-trip to be in sync with.
		if err := session.Goodbye(c, rt.protocol(), false); err != nil {
			return nil, err
		}
	}

	sessionDone = true

	// Non-fatal failures accumulated along the way surface now, mapped to
	// the partial-transfer exit code; they never abort mid-session.
	if rt.MetadataErrors != nil {
		for _, err := range rt.MetadataErrors.Errors {
			rt.Logger.Printf("metadata: %v", err)
		}
	}
	if rt.IOErrors > 0 || rt.MetadataErrors.ErrorOrNil() != nil {
		return stats, rsyncerr.New(rsync.ExitPartialTransfer,
			"some files/attrs were not transferred (see previous errors)")
	}

	return stats, nil
}

// rsync/main.c:report
func (rt *Transfer) report(c *rsyncwire.Conn) (*rsyncstats.TransferStats, error) {
	s, err := session.ReadStats(c, rt.protocol())
	if err != nil {
		return nil, err
	}
	rt.Logger.Printf("server sent stats: read=%d, written=%d, size=%d", s.Read, s.Written, s.Size)
	return &s, nil
}
