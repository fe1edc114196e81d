// Package orchestrator owns agent registration, spawns every execution plus
// one progress reporter, and blocks until the run is cancelled.
//
//	o := orchestrator.New(orchestrator.Options{Logger: logger})
//	_ = o.Register("search", newSearchAgent, 50)
//	_ = o.Register("login", newLoginAgent, 5)
//	err := o.Begin(ctx) // returns nil once ctx is cancelled and executions drain
//
// Each registration's factory is called once; all instances of a
// registration share the resulting agent value and its counters. The
// agent's Bootstrap runs once for that value and every instance waits for
// it before performing.
package orchestrator
