package executor

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/sagent/internal/agent"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new, monotonically increasing execution ID.
func NewID() ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// Execution is the handle of one spawned execution.
type Execution struct {
	ID    ulid.ULID
	Name  string
	Agent agent.Agent

	done chan struct{}
	err  error
}

// Done is closed when the execution has ended.
func (x *Execution) Done() <-chan struct{} { return x.done }

// Err returns the error the execution ended with. It is nil until Done is
// closed.
func (x *Execution) Err() error {
	select {
	case <-x.done:
		return x.err
	default:
		return nil
	}
}

// Spawn starts an execution of a in its own goroutine.
func (e *Executor) Spawn(ctx context.Context, name string, a agent.Agent) *Execution {
	x := &Execution{
		ID:    NewID(),
		Name:  name,
		Agent: a,
		done:  make(chan struct{}),
	}
	go func() {
		defer close(x.done)
		x.err = e.Execute(ctx, name, a)
	}()
	return x
}
