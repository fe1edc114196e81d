package executor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/torosent/sagent/internal/executor"
	"github.com/torosent/sagent/internal/metrics"
)

// scriptedAgent fails its failOn-th perform (1-based) when failOn > 0.
type scriptedAgent struct {
	bootstrapErr error
	failOn       int64
	panicOn      int64
	bootstraps   atomic.Int64
	performs     atomic.Int64
}

func (s *scriptedAgent) Bootstrap(context.Context) error {
	s.bootstraps.Add(1)
	return s.bootstrapErr
}

func (s *scriptedAgent) Perform(context.Context) error {
	n := s.performs.Add(1)
	if s.panicOn > 0 && n == s.panicOn {
		panic("boom")
	}
	if s.failOn > 0 && n == s.failOn {
		return errors.New("perform failed")
	}
	return nil
}

// performOnly has no Bootstrap method.
type performOnly struct {
	performs atomic.Int64
	stopAt   int64
	cancel   context.CancelFunc
}

func (p *performOnly) Perform(context.Context) error {
	if p.performs.Add(1) == p.stopAt {
		p.cancel()
	}
	return nil
}

func newTestExecutor(buf *bytes.Buffer) (*executor.Executor, *metrics.Collector) {
	collector := metrics.NewCollector()
	logger := hclog.New(&hclog.LoggerOptions{Name: "test", Output: buf, Level: hclog.Debug})
	return executor.New(executor.Options{Logger: logger, Collector: collector}), collector
}

func TestBootstrapFailureSkipsPerform(t *testing.T) {
	var buf bytes.Buffer
	exec, collector := newTestExecutor(&buf)
	a := &scriptedAgent{bootstrapErr: errors.New("login refused")}

	err := exec.Execute(context.Background(), "login", a)

	var agentErr *executor.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *AgentError, got %v", err)
	}
	if agentErr.Phase != metrics.PhaseBootstrap || agentErr.Agent != "login" {
		t.Fatalf("unexpected agent error %+v", agentErr)
	}
	if got := a.performs.Load(); got != 0 {
		t.Fatalf("expected perform never invoked, got %d", got)
	}
	if exec.Performs() != 0 {
		t.Fatalf("expected 0 performs counted, got %d", exec.Performs())
	}
	if got := collector.Stats(0).Agents[0].FailuresByPhase[metrics.PhaseBootstrap]; got != 1 {
		t.Fatalf("expected bootstrap failure recorded, got %d", got)
	}
	if !strings.Contains(buf.String(), "login refused") {
		t.Fatalf("expected failure logged, got %q", buf.String())
	}
}

func TestPerformFailureEndsExecution(t *testing.T) {
	var buf bytes.Buffer
	exec, _ := newTestExecutor(&buf)
	a := &scriptedAgent{failOn: 5}

	err := exec.Execute(context.Background(), "search", a)

	var agentErr *executor.AgentError
	if !errors.As(err, &agentErr) || agentErr.Phase != metrics.PhasePerform {
		t.Fatalf("expected perform *AgentError, got %v", err)
	}
	if got := a.performs.Load(); got != 5 {
		t.Fatalf("expected 5 perform invocations, got %d", got)
	}
	if got := exec.Performs(); got != 4 {
		t.Fatalf("expected 4 counted performs, got %d", got)
	}
	if got := a.bootstraps.Load(); got != 1 {
		t.Fatalf("expected one bootstrap, got %d", got)
	}
}

func TestPanicIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	exec, _ := newTestExecutor(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthy := &scriptedAgent{}
	healthyExec := exec.Spawn(ctx, "healthy", healthy)

	panicky := &scriptedAgent{panicOn: 3}
	err := exec.Execute(ctx, "panicky", panicky)

	var panicErr *executor.PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError in chain, got %v", err)
	}
	if panicErr.Value != "boom" || len(panicErr.Stack) == 0 {
		t.Fatalf("unexpected panic error %+v", panicErr)
	}

	select {
	case <-healthyExec.Done():
		t.Fatalf("healthy execution ended: %v", healthyExec.Err())
	default:
	}

	before := healthy.performs.Load()
	deadline := time.Now().Add(2 * time.Second)
	for healthy.performs.Load() == before {
		if time.Now().After(deadline) {
			t.Fatal("healthy execution stopped making progress")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	<-healthyExec.Done()
	if !errors.Is(healthyExec.Err(), context.Canceled) {
		t.Fatalf("expected cancellation, got %v", healthyExec.Err())
	}
}

func TestCancellationIsNotFailure(t *testing.T) {
	var buf bytes.Buffer
	exec, collector := newTestExecutor(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	a := &performOnly{stopAt: 10, cancel: cancel}

	err := exec.Execute(ctx, "idle", a)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var agentErr *executor.AgentError
	if errors.As(err, &agentErr) {
		t.Fatalf("cancellation reported as agent failure: %v", err)
	}
	if got := exec.Performs(); got != 10 {
		t.Fatalf("expected 10 performs, got %d", got)
	}
	if got := collector.Stats(0).Failures; got != 0 {
		t.Fatalf("expected no failures, got %d", got)
	}
}

func TestErrorAfterCancellationIsNotFailure(t *testing.T) {
	var buf bytes.Buffer
	exec, collector := newTestExecutor(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &scriptedAgent{bootstrapErr: context.Canceled}
	if err := exec.Execute(ctx, "late", a); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := collector.Stats(0).Failures; got != 0 {
		t.Fatalf("expected no failures, got %d", got)
	}
}

func TestNilAgent(t *testing.T) {
	var buf bytes.Buffer
	exec, _ := newTestExecutor(&buf)
	var agentErr *executor.AgentError
	if err := exec.Execute(context.Background(), "nil", nil); !errors.As(err, &agentErr) {
		t.Fatalf("expected *AgentError, got %v", err)
	}
}

func TestSpawnHandle(t *testing.T) {
	exec := executor.New(executor.Options{})
	a := &scriptedAgent{failOn: 2}

	h := exec.Spawn(context.Background(), "short", a)
	if h.ID.String() == "" || h.Name != "short" || h.Agent != a {
		t.Fatalf("unexpected handle %+v", h)
	}

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("execution did not end")
	}
	var agentErr *executor.AgentError
	if !errors.As(h.Err(), &agentErr) {
		t.Fatalf("expected *AgentError, got %v", h.Err())
	}
}

type countingAgent struct {
	performs atomic.Int64
}

func (c *countingAgent) Perform(context.Context) error {
	c.performs.Add(1)
	return nil
}

func TestSiblingExecutionsInterleaveFairly(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	exec := executor.New(executor.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	agents := make([]*countingAgent, 3)
	handles := make([]*executor.Execution, len(agents))
	for i := range agents {
		agents[i] = &countingAgent{}
		handles[i] = exec.Spawn(ctx, fmt.Sprintf("worker-%d", i), agents[i])
	}
	for i, h := range handles {
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("execution %d did not stop after cancellation", i)
		}
		if !errors.Is(h.Err(), context.DeadlineExceeded) {
			t.Fatalf("execution %d: expected deadline exceeded, got %v", i, h.Err())
		}
	}

	var sum, lo, hi int64
	for i, a := range agents {
		n := a.performs.Load()
		if n == 0 {
			t.Fatalf("execution %d was starved", i)
		}
		if i == 0 || n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
		sum += n
	}
	if hi > 4*lo {
		t.Fatalf("unfair interleaving: min %d, max %d performs", lo, hi)
	}
	if got := exec.Performs(); got != sum {
		t.Fatalf("expected executor performs %d to equal sum of agent performs %d", got, sum)
	}
}

func TestNewIDIsUniqueAndOrdered(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := executor.NewID().String()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 1000 {
		t.Fatalf("expected 1000 unique ids, got %d", len(seen))
	}

	a, b := executor.NewID(), executor.NewID()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected increasing ids, got %s then %s", a, b)
	}
}
