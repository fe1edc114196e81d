package orchestrator

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/sagent/internal/executor"
)

// group holds every live task of a run. Members insert themselves on spawn
// and remove themselves when they finish.
type group struct {
	mu      sync.Mutex
	members map[ulid.ULID]string
	wg      sync.WaitGroup
}

func newGroup() *group {
	return &group{members: make(map[ulid.ULID]string)}
}

// Go runs fn as a new member. Panics in fn are recovered and passed to
// onExit like any other error.
func (g *group) Go(name string, fn func() error, onExit func(name string, err error)) ulid.ULID {
	id := executor.NewID()

	g.mu.Lock()
	g.members[id] = name
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.remove(id)

		err := executor.Recover(fn)
		if onExit != nil {
			onExit(name, err)
		}
	}()
	return id
}

func (g *group) remove(id ulid.ULID) {
	g.mu.Lock()
	delete(g.members, id)
	g.mu.Unlock()
}

// Len returns the number of live members.
func (g *group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Names returns how many live members carry each name.
func (g *group) Names() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int)
	for _, name := range g.members {
		out[name]++
	}
	return out
}

// Wait returns a channel closed once every member has finished.
func (g *group) Wait() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	return done
}
