// Package executor drives a single agent for as long as its context lives.
//
// One execution bootstraps the agent (when it implements
// [agent.Bootstrapper]) and then calls Perform over and over, yielding the
// processor between calls:
//
//	exec := executor.New(executor.Options{Logger: logger, Collector: collector})
//	h := exec.Spawn(ctx, "search", searchAgent)
//	<-h.Done()
//
// A failing or panicking agent ends only its own execution. The failure is
// logged, recorded and returned as an [*AgentError]; sibling executions are
// unaffected. Cancellation observed at a yield point is not a failure.
package executor
