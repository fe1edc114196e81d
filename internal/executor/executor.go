package executor

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/sagent/internal/agent"
	"github.com/torosent/sagent/internal/metrics"
	"github.com/torosent/sagent/internal/tracing"
)

// Executor runs agent executions and counts completed performs across all
// of them.
type Executor struct {
	logger    hclog.Logger
	collector *metrics.Collector
	tracer    trace.Tracer
	performs  atomic.Int64
}

func New(opts Options) *Executor {
	opts.normalize()
	return &Executor{
		logger:    opts.Logger,
		collector: opts.Collector,
		tracer:    opts.Tracer,
	}
}

// Performs returns the number of performs that completed without error.
func (e *Executor) Performs() int64 {
	return e.performs.Load()
}

// Collector returns the metrics collector executions record into.
func (e *Executor) Collector() *metrics.Collector {
	return e.collector
}

// Execute drives a until ctx is done or a fails. It returns ctx.Err() on
// cancellation and an *AgentError on failure; it never returns nil.
func (e *Executor) Execute(ctx context.Context, name string, a agent.Agent) error {
	if a == nil {
		return e.fail(name, metrics.PhaseBootstrap, errors.New("nil agent"))
	}

	if b, ok := a.(agent.Bootstrapper); ok {
		if err := e.bootstrap(ctx, name, b); err != nil {
			if cancelled(ctx, err) {
				return ctx.Err()
			}
			return e.fail(name, metrics.PhaseBootstrap, err)
		}
	}

	for {
		if err := yield(ctx); err != nil {
			e.logger.Debug("execution cancelled", "agent", name)
			return err
		}

		start := time.Now()
		if err := e.perform(ctx, name, a); err != nil {
			if cancelled(ctx, err) {
				e.logger.Debug("execution cancelled", "agent", name)
				return ctx.Err()
			}
			return e.fail(name, metrics.PhasePerform, err)
		}
		e.performs.Add(1)
		e.collector.RecordPerform(name, time.Since(start))
	}
}

func (e *Executor) bootstrap(ctx context.Context, name string, b agent.Bootstrapper) error {
	spanCtx, span := tracing.StartPhaseSpan(ctx, e.tracer, name, metrics.PhaseBootstrap)
	err := Recover(func() error { return b.Bootstrap(spanCtx) })
	tracing.EndSpan(span, err)
	return err
}

func (e *Executor) perform(ctx context.Context, name string, a agent.Agent) error {
	spanCtx, span := tracing.StartPhaseSpan(ctx, e.tracer, name, metrics.PhasePerform)
	err := Recover(func() error { return a.Perform(spanCtx) })
	tracing.EndSpan(span, err)
	return err
}

func (e *Executor) fail(name, phase string, err error) error {
	agentErr := &AgentError{Agent: name, Phase: phase, Err: err}
	e.collector.RecordFailure(name, phase, err)

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		e.logger.Error("agent panicked", "agent", name, "phase", phase, "error", panicErr.Value, "stack", string(panicErr.Stack))
	} else {
		e.logger.Error("agent failed", "agent", name, "phase", phase, "error", err)
	}
	return agentErr
}

// yield gives other goroutines a chance to run and reports cancellation.
func yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// cancelled reports whether err is the consequence of ctx ending rather
// than an agent failure. Panics always count as failures.
func cancelled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	var panicErr *PanicError
	return !errors.As(err, &panicErr)
}
