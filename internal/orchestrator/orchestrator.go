package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/torosent/sagent/internal/agent"
	"github.com/torosent/sagent/internal/executor"
	"github.com/torosent/sagent/internal/metrics"
	"github.com/torosent/sagent/internal/output"
)

// ErrAlreadyStarted is returned by Register and Begin once Begin has run.
var ErrAlreadyStarted = errors.New("orchestrator already started")

const reporterName = "reporter"

// Options configure the Orchestrator.
type Options struct {
	ReportInterval  time.Duration      // progress line interval (default 1s)
	ShutdownTimeout time.Duration      // drain limit after cancellation (default 5s)
	Writer          io.Writer          // progress lines (default stdout)
	Logger          hclog.Logger       // optional
	Executor        *executor.Executor // optional; built from Logger when nil
}

func (o *Options) normalize() {
	if o.ReportInterval <= 0 {
		o.ReportInterval = time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	if o.Writer == nil {
		o.Writer = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	if o.Executor == nil {
		o.Executor = executor.New(executor.Options{Logger: o.Logger.Named("executor")})
	}
}

// Registration is a pending agent definition.
type Registration struct {
	Name      string
	Factory   agent.Factory
	Instances int
}

// ExecutedAgent is an agent value created at Begin together with the number
// of executions driving it.
type ExecutedAgent struct {
	Name      string
	Agent     agent.Agent
	Instances int
}

// Orchestrator runs registered agents until cancelled.
type Orchestrator struct {
	opts   Options
	logger hclog.Logger
	exec   *executor.Executor

	mu            sync.Mutex
	registrations []Registration
	executed      []ExecutedAgent
	started       bool

	group  *group
	active atomic.Int64
	failed atomic.Int64
}

func New(opts Options) *Orchestrator {
	opts.normalize()
	return &Orchestrator{
		opts:   opts,
		logger: opts.Logger.Named("orchestrator"),
		exec:   opts.Executor,
		group:  newGroup(),
	}
}

// Register appends an agent definition. It fails once Begin has been called.
func (o *Orchestrator) Register(name string, factory agent.Factory, instances int) error {
	if factory == nil {
		return errors.New("register: factory is required")
	}
	if instances < 0 {
		return fmt.Errorf("register %s: instances must be non-negative, got %d", name, instances)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return ErrAlreadyStarted
	}
	if name == "" {
		name = fmt.Sprintf("agent-%d", len(o.registrations)+1)
	}
	o.registrations = append(o.registrations, Registration{Name: name, Factory: factory, Instances: instances})
	return nil
}

// Registrations returns the registered definitions in registration order.
func (o *Orchestrator) Registrations() []Registration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Registration(nil), o.registrations...)
}

// Executed returns the agents created by Begin in registration order.
func (o *Orchestrator) Executed() []ExecutedAgent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ExecutedAgent(nil), o.executed...)
}

// Begin creates the agents, spawns their executions and the reporter, and
// blocks until ctx is cancelled. Agent failures never surface here.
func (o *Orchestrator) Begin(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	executed, runners, err := o.prepare()
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.executed = executed
	o.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.exec.Collector().Start()
	o.spawn(ctx, executed, runners)
	return o.wait(ctx)
}

// prepare calls every factory once. runners[i] is what executions of
// executed[i] drive.
func (o *Orchestrator) prepare() ([]ExecutedAgent, []agent.Agent, error) {
	executed := make([]ExecutedAgent, 0, len(o.registrations))
	runners := make([]agent.Agent, 0, len(o.registrations))
	for _, reg := range o.registrations {
		var a agent.Agent
		err := executor.Recover(func() error {
			a = reg.Factory()
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create agent %s: %w", reg.Name, err)
		}
		if a == nil {
			return nil, nil, fmt.Errorf("create agent %s: factory returned nil", reg.Name)
		}
		o.exec.Collector().RegisterAgent(reg.Name)
		executed = append(executed, ExecutedAgent{Name: reg.Name, Agent: a, Instances: reg.Instances})
		runners = append(runners, shareBootstrap(a))
	}
	return executed, runners, nil
}

func (o *Orchestrator) spawn(ctx context.Context, executed []ExecutedAgent, runners []agent.Agent) {
	for i, ea := range executed {
		runner := runners[i]
		for n := 0; n < ea.Instances; n++ {
			name := ea.Name
			o.active.Add(1)
			o.group.Go(name, func() error {
				return o.exec.Execute(ctx, name, runner)
			}, o.executionExited)
		}
		o.logger.Debug("spawned executions", "agent", ea.Name, "instances", ea.Instances)
	}

	reporter := output.NewProgressReporter(o, o.opts.ReportInterval, o.opts.Writer)
	o.group.Go(reporterName, func() error {
		return reporter.Run(ctx)
	}, o.reporterExited)

	o.logger.Info("orchestrator started", "agents", len(executed), "executions", o.active.Load())
}

func (o *Orchestrator) executionExited(name string, err error) {
	o.active.Add(-1)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	o.failed.Add(1)
}

func (o *Orchestrator) reporterExited(_ string, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	o.logger.Error("progress reporter stopped", "error", err)
}

func (o *Orchestrator) wait(ctx context.Context) error {
	done := o.group.Wait()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	o.logger.Info("orchestrator cancelled, waiting for executions to stop", "live", o.group.Len())
	timer := time.NewTimer(o.opts.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		o.logger.Info("all executions stopped")
	case <-timer.C:
		o.logger.Warn("shutdown timeout exceeded, abandoning executions",
			"live", o.group.Len(), "running", o.group.Names(), "timeout", o.opts.ShutdownTimeout)
	}
	return nil
}

// Snapshot aggregates progress across every executed agent. Agents without
// call counters contribute zero calls.
func (o *Orchestrator) Snapshot() output.Progress {
	p := output.Progress{
		Performs: o.exec.Performs(),
		Active:   int(o.active.Load()),
		Failed:   o.failed.Load(),
	}
	for _, ea := range o.Executed() {
		pending, done := agent.StatsOf(ea.Agent)
		p.CallsPending += pending
		p.CallsDone += done
	}
	return p
}

// Report builds the end-of-run summary.
func (o *Orchestrator) Report() output.Report {
	collector := o.exec.Collector()
	snap := o.Snapshot()
	report := output.Report{
		Stats:        collector.Stats(collector.Elapsed()),
		CallsDone:    snap.CallsDone,
		CallsPending: snap.CallsPending,
	}

	buckets := make(map[string]map[string]int64)
	for _, ea := range o.Executed() {
		sc, ok := ea.Agent.(statusCoder)
		if !ok {
			continue
		}
		if codes := sc.StatusCodes(); len(codes) > 0 {
			buckets[ea.Name] = codes
		}
	}
	report.StatusBuckets = metrics.FlattenStatusBuckets(buckets)
	return report
}

type statusCoder interface {
	StatusCodes() map[string]int64
}

// Live returns the number of running group members, the reporter included.
func (o *Orchestrator) Live() int {
	return o.group.Len()
}
