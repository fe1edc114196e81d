package orchestrator

import (
	"context"
	"sync"

	"github.com/torosent/sagent/internal/agent"
	"github.com/torosent/sagent/internal/executor"
)

// onceAgent runs the wrapped agent's Bootstrap a single time no matter how
// many executions drive it. Later callers block until the first finishes
// and observe its result.
type onceAgent struct {
	agent.Agent
	boot agent.Bootstrapper

	once sync.Once
	err  error
}

func shareBootstrap(a agent.Agent) agent.Agent {
	boot, ok := a.(agent.Bootstrapper)
	if !ok {
		return a
	}
	return &onceAgent{Agent: a, boot: boot}
}

func (o *onceAgent) Bootstrap(ctx context.Context) error {
	o.once.Do(func() {
		o.err = executor.Recover(func() error { return o.boot.Bootstrap(ctx) })
	})
	return o.err
}
