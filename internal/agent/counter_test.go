package agent_test

import (
	"sync"
	"testing"

	"github.com/torosent/sagent/internal/agent"
)

func TestCallCounterTrackAndRelease(t *testing.T) {
	var c agent.CallCounter

	release := c.Track()
	if got := c.PendingCalls(); got != 1 {
		t.Fatalf("expected 1 pending, got %d", got)
	}
	if got := c.DoneCalls(); got != 0 {
		t.Fatalf("expected 0 done, got %d", got)
	}

	release()
	release() // second release is ignored

	if got := c.PendingCalls(); got != 0 {
		t.Fatalf("expected 0 pending after release, got %d", got)
	}
	if got := c.DoneCalls(); got != 1 {
		t.Fatalf("expected 1 done after release, got %d", got)
	}
}

func TestCallCounterConcurrent(t *testing.T) {
	var c agent.CallCounter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				release := c.Track()
				c.ObserveStatus(200)
				release()
			}
		}()
	}
	wg.Wait()

	if got := c.DoneCalls(); got != 1000 {
		t.Fatalf("expected 1000 done, got %d", got)
	}
	if got := c.PendingCalls(); got != 0 {
		t.Fatalf("expected 0 pending, got %d", got)
	}
	if got := c.StatusCodes()["200"]; got != 1000 {
		t.Fatalf("expected 1000 status 200, got %d", got)
	}
}

func TestCallCounterResetKeepsPending(t *testing.T) {
	var c agent.CallCounter
	c.Track()()
	c.Observe("500")
	inflight := c.Track()

	c.Reset()

	if got := c.DoneCalls(); got != 0 {
		t.Fatalf("expected done reset to 0, got %d", got)
	}
	if got := len(c.StatusCodes()); got != 0 {
		t.Fatalf("expected status codes cleared, got %d entries", got)
	}
	if got := c.PendingCalls(); got != 1 {
		t.Fatalf("expected in-flight call to stay pending, got %d", got)
	}

	inflight()
	if c.PendingCalls() != 0 || c.DoneCalls() != 1 {
		t.Fatalf("unexpected counters after release: pending=%d done=%d", c.PendingCalls(), c.DoneCalls())
	}
}

func TestCallCounterIgnoresEmptyLabel(t *testing.T) {
	var c agent.CallCounter
	c.Observe("")
	if got := len(c.StatusCodes()); got != 0 {
		t.Fatalf("expected empty label to be ignored, got %d entries", got)
	}
}
