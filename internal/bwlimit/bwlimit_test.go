package bwlimit

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestUnlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 3; i++ {
		if d := l.Register(1 << 20); d != 0 {
			t.Fatalf("unlimited Register returned sleep of %v", d)
		}
	}
	if l.SleptTotal != 0 {
		t.Errorf("unlimited limiter accumulated %v of sleep", l.SleptTotal)
	}
}

func TestNilLimiterIsNoop(t *testing.T) {
	var l *Limiter
	if d := l.Register(4096); d != 0 {
		t.Errorf("nil limiter Register = %v, want 0", d)
	}
	if err := l.Wait(context.Background(), 4096); err != nil {
		t.Errorf("nil limiter Wait = %v, want nil", err)
	}
}

func TestRegisterReportsSleep(t *testing.T) {
	// 1000 bytes/sec with a 1000-byte burst: the first chunk rides the
	// burst, the second must wait roughly a second.
	l := New(1000, 1000)
	if d := l.Register(1000); d > 100*time.Millisecond {
		t.Fatalf("first Register within burst reported %v of sleep", d)
	}
	d := l.Register(1000)
	if d < 500*time.Millisecond {
		t.Fatalf("second Register reported only %v, want roughly a second", d)
	}
	if l.SleptTotal < d {
		t.Errorf("SleptTotal = %v, want at least the %v just reported", l.SleptTotal, d)
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	l := New(10, 10) // 10 bytes/sec: a large chunk implies a long wait
	if err := l.Wait(context.Background(), 10); err != nil {
		t.Fatalf("Wait within burst: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, 10); err == nil {
		t.Error("Wait with canceled context returned nil")
	}
}

func TestReaderWriterWrapping(t *testing.T) {
	var buf bytes.Buffer

	// nil and unlimited limiters hand back the stream untouched.
	var nilL *Limiter
	if w := nilL.Writer(&buf); w != io.Writer(&buf) {
		t.Error("nil limiter wrapped the writer")
	}
	if r := New(0, 0).Reader(&buf); r != io.Reader(&buf) {
		t.Error("unlimited limiter wrapped the reader")
	}

	// A generous limit still copies bytes through unmodified.
	l := New(1<<20, 1<<20)
	src := bytes.Repeat([]byte("payload-"), 512)
	if _, err := io.Copy(l.Writer(&buf), bytes.NewReader(src)); err != nil {
		t.Fatalf("throttled copy: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), src) {
		t.Error("throttled writer corrupted the stream")
	}

	var out bytes.Buffer
	if _, err := io.Copy(&out, l.Reader(bytes.NewReader(src))); err != nil {
		t.Fatalf("throttled read: %v", err)
	}
	if !bytes.Equal(out.Bytes(), src) {
		t.Error("throttled reader corrupted the stream")
	}
}
