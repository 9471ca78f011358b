// Package bwlimit implements the session bandwidth limiter (spec.md §5
// "Bandwidth limiter"): a token-bucket with configurable fill rate and
// burst size, reporting how long the caller must sleep before continuing.
//
// Grounded on `golang.org/x/time/rate`, the bandwidth-limiting dependency
// carried over from hemzaz-freightliner's go.mod (the only example repo in
// the retrieval pack with a token-bucket limiter wired to network I/O);
// the accumulation of sleep time into a session summary is new, built to
// match the teacher's preference for small struct-with-counters types
// (cf. rsyncwire.CountingReader/CountingWriter).
package bwlimit

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps a rate.Limiter and accumulates the total time callers have
// been asked to sleep, for reporting in the end-of-transfer statistics.
type Limiter struct {
	rl *rate.Limiter

	SleptTotal time.Duration
}

// New constructs a Limiter with the given sustained rate in bytes/second
// and burst size in bytes. A zero bytesPerSec disables limiting.
func New(bytesPerSec int, burst int) *Limiter {
	if bytesPerSec <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, burst)}
	}
	if burst <= 0 {
		burst = bytesPerSec
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}
}

// Register reports n bytes just transferred and returns how long the
// caller must sleep before sending/receiving more, per spec.md's
// `register(bytes)` contract. It does not itself sleep, so callers that
// need to respect context cancellation can select on it.
func (l *Limiter) Register(n int) time.Duration {
	if l == nil || l.rl == nil {
		return 0
	}
	// Chunks larger than the burst are registered in burst-sized steps: a
	// single ReserveN beyond the burst would be refused outright and the
	// bytes would escape accounting entirely.
	var total time.Duration
	burst := l.rl.Burst()
	for n > 0 {
		step := n
		if burst > 0 && step > burst {
			step = burst
		}
		r := l.rl.ReserveN(time.Now(), step)
		if !r.OK() {
			break
		}
		total += r.Delay()
		n -= step
	}
	l.SleptTotal += total
	return total
}

// Wait registers n bytes and blocks for the resulting delay, honoring ctx
// cancellation the way rate.Limiter.WaitN does.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil || l.rl == nil {
		return nil
	}
	start := time.Now()
	if err := l.rl.WaitN(ctx, n); err != nil {
		return err
	}
	l.SleptTotal += time.Since(start)
	return nil
}

// Reader returns r throttled by l: each chunk read registers its byte
// count and sleeps out the resulting delay before returning. A nil or
// unlimited l returns r unchanged.
func (l *Limiter) Reader(r io.Reader) io.Reader {
	if l == nil || l.rl == nil || l.rl.Limit() == rate.Inf {
		return r
	}
	return &limitedReader{l: l, r: r}
}

// Writer is the write-side counterpart of Reader.
func (l *Limiter) Writer(w io.Writer) io.Writer {
	if l == nil || l.rl == nil || l.rl.Limit() == rate.Inf {
		return w
	}
	return &limitedWriter{l: l, w: w}
}

type limitedReader struct {
	l *Limiter
	r io.Reader
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if n > 0 {
		if d := lr.l.Register(n); d > 0 {
			time.Sleep(d)
		}
	}
	return n, err
}

type limitedWriter struct {
	l *Limiter
	w io.Writer
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if d := lw.l.Register(len(p)); d > 0 {
		time.Sleep(d)
	}
	return lw.w.Write(p)
}
