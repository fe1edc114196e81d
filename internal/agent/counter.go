package agent

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// CallCounter accounts in-flight and finished calls. The zero value is ready
// to use and safe for concurrent use.
type CallCounter struct {
	pending atomic.Int64
	done    atomic.Int64

	mu    sync.Mutex
	codes map[string]int64
}

// Track marks one call as pending and returns the release func that must run
// exactly once when the call finishes, whatever its outcome:
//
//	release := counter.Track()
//	defer release()
func (c *CallCounter) Track() (release func()) {
	c.pending.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.pending.Add(-1)
			c.done.Add(1)
		})
	}
}

// Observe records the outcome label of a finished call, usually a status code.
func (c *CallCounter) Observe(code string) {
	if code == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = make(map[string]int64)
	}
	c.codes[code]++
}

// ObserveStatus records an HTTP status code.
func (c *CallCounter) ObserveStatus(status int) {
	c.Observe(strconv.Itoa(status))
}

// PendingCalls returns the number of calls currently in flight.
func (c *CallCounter) PendingCalls() int64 {
	return c.pending.Load()
}

// DoneCalls returns the number of calls that finished, successfully or not.
func (c *CallCounter) DoneCalls() int64 {
	return c.done.Load()
}

// StatusCodes returns a copy of the per-outcome counts.
func (c *CallCounter) StatusCodes() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.codes))
	for k, v := range c.codes {
		out[k] = v
	}
	return out
}

// Reset clears the done count and status codes. Pending is left untouched
// because calls in flight still hold their release func.
func (c *CallCounter) Reset() {
	c.done.Store(0)
	c.mu.Lock()
	c.codes = nil
	c.mu.Unlock()
}
