package output

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress is a point-in-time view of a running orchestrator.
type Progress struct {
	Performs     int64 `json:"performs" yaml:"performs"`
	CallsDone    int64 `json:"calls_done" yaml:"calls_done"`
	CallsPending int64 `json:"calls_pending" yaml:"calls_pending"`
	Active       int   `json:"active" yaml:"active"`
	Failed       int64 `json:"failed" yaml:"failed"`
}

// Source provides progress snapshots.
type Source interface {
	Snapshot() Progress
}

// Tick is one emitted progress line.
type Tick struct {
	Progress
	Delta   int64
	Elapsed time.Duration
}

// ProgressReporter writes one progress line per interval.
type ProgressReporter struct {
	source   Source
	interval time.Duration
	writer   io.Writer
	start    time.Time

	mu       sync.Mutex
	previous int64
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source Source, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		source:   source,
		interval: interval,
		writer:   writer,
		start:    time.Now(),
	}
}

// Run emits a line immediately and then once per interval until ctx is
// done. It returns ctx.Err().
func (p *ProgressReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick()
	for {
		select {
		case <-ticker.C:
			p.Tick()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick takes a snapshot, writes its line and advances the previous
// cumulative call count.
func (p *ProgressReporter) Tick() Tick {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.source.Snapshot()
	t := Tick{
		Progress: snap,
		Delta:    snap.CallsDone - p.previous,
		Elapsed:  time.Since(p.start),
	}
	p.previous = snap.CallsDone

	fmt.Fprintln(p.writer, FormatTick(t))
	return t
}

// FormatTick renders a tick as a single progress line.
func FormatTick(t Tick) string {
	line := fmt.Sprintf("[%s] Performs: %d | Calls: %d (%+d) | Pending: %d | Active: %d",
		t.Elapsed.Truncate(time.Second), t.Performs, t.CallsDone, t.Delta, t.CallsPending, t.Active)
	if t.Failed > 0 {
		line += fmt.Sprintf(" | Failed: %d", t.Failed)
	}
	return line
}
