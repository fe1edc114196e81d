package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Lifecycle phases a failure can happen in.
const (
	PhaseBootstrap = "bootstrap"
	PhasePerform   = "perform"
)

// Collector records per-agent perform latencies and failures in a
// thread-safe manner.
type Collector struct {
	mu     sync.Mutex
	start  time.Time
	total  *latencyRecorder
	agents map[string]*agentRecorder
	order  []string
}

type agentRecorder struct {
	latency      *latencyRecorder
	failures     map[string]int64
	errorsByType map[string]int64
}

type latencyRecorder struct {
	hist       *hdrhistogram.Histogram
	count      int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
}

// Stats represents aggregated metrics across every agent.
type Stats struct {
	Performs       int64         `json:"performs" yaml:"performs"`
	Failures       int64         `json:"failures" yaml:"failures"`
	Duration       time.Duration `json:"-" yaml:"-"`
	PerformsPerSec float64       `json:"performs_per_sec" yaml:"performs_per_sec"`
	Latency        LatencyStats  `json:"latency" yaml:"latency"`
	Agents         []AgentStats  `json:"agents,omitempty" yaml:"agents,omitempty"`

	DurationMs float64          `json:"duration_ms" yaml:"duration_ms"`
	Errors     map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// AgentStats holds the metrics of one registered agent.
type AgentStats struct {
	Name            string           `json:"name" yaml:"name"`
	Performs        int64            `json:"performs" yaml:"performs"`
	Failures        int64            `json:"failures" yaml:"failures"`
	FailuresByPhase map[string]int64 `json:"failures_by_phase,omitempty" yaml:"failures_by_phase,omitempty"`
	Errors          map[string]int64 `json:"errors,omitempty" yaml:"errors,omitempty"`
	Latency         LatencyStats     `json:"latency" yaml:"latency"`
}

// LatencyStats summarises perform latencies.
type LatencyStats struct {
	Min  time.Duration `json:"-" yaml:"-"`
	Max  time.Duration `json:"-" yaml:"-"`
	Mean time.Duration `json:"-" yaml:"-"`
	P50  time.Duration `json:"-" yaml:"-"`
	P90  time.Duration `json:"-" yaml:"-"`
	P99  time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	MinMs  float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs  float64 `json:"max_ms" yaml:"max_ms"`
	MeanMs float64 `json:"mean_ms" yaml:"mean_ms"`
	P50Ms  float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms  float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms  float64 `json:"p99_ms" yaml:"p99_ms"`
}

func NewCollector() *Collector {
	return &Collector{
		start:  time.Now(),
		total:  newLatencyRecorder(),
		agents: make(map[string]*agentRecorder),
	}
}

func newLatencyRecorder() *latencyRecorder {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &latencyRecorder{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

// Start resets the collector clock.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since the collector started.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordPerform records one completed perform of the named agent.
func (c *Collector) RecordPerform(agent string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total.record(latency)
	c.agent(agent).latency.record(latency)
}

// RecordFailure records an execution ending with err in the given phase.
func (c *Collector) RecordFailure(agent, phase string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.agent(agent)
	rec.failures[phase]++
	rec.errorsByType[errorType(err)]++
}

// RegisterAgent makes an agent appear in the stats before it has recorded
// anything. Agents show up in registration order.
func (c *Collector) RegisterAgent(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agent(name)
}

func (c *Collector) agent(name string) *agentRecorder {
	rec, ok := c.agents[name]
	if !ok {
		rec = &agentRecorder{
			latency:      newLatencyRecorder(),
			failures:     make(map[string]int64),
			errorsByType: make(map[string]int64),
		}
		c.agents[name] = rec
		c.order = append(c.order, name)
	}
	return rec
}

func (r *latencyRecorder) record(latency time.Duration) {
	r.count++
	if latency > 0 {
		us := latency.Microseconds()
		if us < r.hist.LowestTrackableValue() {
			us = r.hist.LowestTrackableValue()
		}
		if us > r.hist.HighestTrackableValue() {
			us = r.hist.HighestTrackableValue()
		}
		_ = r.hist.RecordValue(us)
	}
	r.sumLatency += latency

	if r.minLatency == 0 || latency < r.minLatency {
		r.minLatency = latency
	}
	if latency > r.maxLatency {
		r.maxLatency = latency
	}
}

func (r *latencyRecorder) stats() LatencyStats {
	s := LatencyStats{
		Min: r.minLatency,
		Max: r.maxLatency,
	}
	if r.count > 0 {
		s.Mean = time.Duration(int64(r.sumLatency) / r.count)
	}
	if r.hist.TotalCount() > 0 {
		s.P50 = time.Duration(r.hist.ValueAtQuantile(50)) * time.Microsecond
		s.P90 = time.Duration(r.hist.ValueAtQuantile(90)) * time.Microsecond
		s.P99 = time.Duration(r.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	s.MinMs = toMillis(s.Min)
	s.MaxMs = toMillis(s.Max)
	s.MeanMs = toMillis(s.Mean)
	s.P50Ms = toMillis(s.P50)
	s.P90Ms = toMillis(s.P90)
	s.P99Ms = toMillis(s.P99)
	return s
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Performs: c.total.count,
		Latency:  c.total.stats(),
		Duration: elapsed,
	}
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 && stats.Performs > 0 {
		stats.PerformsPerSec = float64(stats.Performs) / elapsed.Seconds()
	}

	for _, name := range c.order {
		rec := c.agents[name]
		as := AgentStats{
			Name:     name,
			Performs: rec.latency.count,
			Latency:  rec.latency.stats(),
		}
		for phase, n := range rec.failures {
			if as.FailuresByPhase == nil {
				as.FailuresByPhase = make(map[string]int64, len(rec.failures))
			}
			as.FailuresByPhase[phase] = n
			as.Failures += n
		}
		for kind, n := range rec.errorsByType {
			if as.Errors == nil {
				as.Errors = make(map[string]int64, len(rec.errorsByType))
			}
			as.Errors[kind] = n
			if stats.Errors == nil {
				stats.Errors = make(map[string]int64)
			}
			stats.Errors[kind] += n
		}
		stats.Failures += as.Failures
		stats.Agents = append(stats.Agents, as)
	}

	return stats
}

// SortedErrorTypes returns the keys of errs ordered by descending count.
func SortedErrorTypes(errs map[string]int64) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if errs[keys[i]] == errs[keys[j]] {
			return keys[i] < keys[j]
		}
		return errs[keys[i]] > errs[keys[j]]
	})
	return keys
}

func errorType(err error) string {
	if err == nil {
		return "<nil>"
	}
	err = unwrapFormatted(err)
	name := fmt.Sprintf("%T", err)
	if len(name) > 30 {
		name = name[len(name)-30:]
	}
	return name
}

// unwrapFormatted peels fmt.Errorf wrappers so failures are grouped by the
// error that caused them.
func unwrapFormatted(err error) error {
	for strings.HasPrefix(fmt.Sprintf("%T", err), "*fmt.") {
		switch w := err.(type) {
		case interface{ Unwrap() error }:
			if inner := w.Unwrap(); inner != nil {
				err = inner
				continue
			}
		case interface{ Unwrap() []error }:
			if inner := w.Unwrap(); len(inner) > 0 && inner[0] != nil {
				err = inner[0]
				continue
			}
		}
		break
	}
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
