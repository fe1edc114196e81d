package output

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubSource struct {
	mu   sync.Mutex
	snap Progress
}

func (s *stubSource) Snapshot() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubSource) set(p Progress) {
	s.mu.Lock()
	s.snap = p
	s.mu.Unlock()
}

func TestTickComputesDelta(t *testing.T) {
	src := &stubSource{}
	var buf bytes.Buffer
	reporter := NewProgressReporter(src, time.Second, &buf)

	src.set(Progress{Performs: 3, CallsDone: 10})
	first := reporter.Tick()
	if first.Delta != 10 {
		t.Fatalf("expected first delta 10, got %d", first.Delta)
	}

	src.set(Progress{Performs: 7, CallsDone: 25, CallsPending: 2, Active: 4})
	second := reporter.Tick()
	if second.Delta != 15 {
		t.Fatalf("expected delta 15, got %d", second.Delta)
	}

	third := reporter.Tick()
	if third.Delta != 0 {
		t.Fatalf("expected delta 0 without new calls, got %d", third.Delta)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "Performs: 7 | Calls: 25 (+15) | Pending: 2 | Active: 4") {
		t.Fatalf("unexpected line %q", lines[1])
	}
}

func TestFormatTickShowsFailures(t *testing.T) {
	line := FormatTick(Tick{Progress: Progress{Failed: 2}})
	if !strings.Contains(line, "Failed: 2") {
		t.Fatalf("expected failures in %q", line)
	}
	if strings.Contains(FormatTick(Tick{}), "Failed") {
		t.Fatal("expected failures hidden when zero")
	}
}

func TestFormatTickSignsDelta(t *testing.T) {
	tests := []struct {
		delta int64
		want  string
	}{
		{delta: 4, want: "Calls: 2 (+4)"},
		{delta: 0, want: "Calls: 2 (+0)"},
		{delta: -8, want: "Calls: 2 (-8)"},
	}
	for _, tt := range tests {
		line := FormatTick(Tick{Progress: Progress{CallsDone: 2}, Delta: tt.delta})
		if !strings.Contains(line, tt.want) {
			t.Errorf("delta %d: expected %q in %q", tt.delta, tt.want, line)
		}
	}
}

func TestRunEmitsUntilCancelled(t *testing.T) {
	src := &stubSource{}
	src.set(Progress{Performs: 1})

	buf := &syncBuffer{}
	reporter := NewProgressReporter(src, 10*time.Millisecond, buf)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	if err := reporter.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	lines := strings.Count(buf.String(), "\n")
	if lines < 3 {
		t.Fatalf("expected several progress lines, got %d", lines)
	}
}

func TestNewProgressReporterDefaults(t *testing.T) {
	reporter := NewProgressReporter(&stubSource{}, 0, nil)
	if reporter.interval != time.Second {
		t.Fatalf("expected default interval 1s, got %s", reporter.interval)
	}
	reporter.Tick()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
