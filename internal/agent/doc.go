// Package agent defines the unit-of-work contract driven by the executor and
// the network capability agents are composed with.
//
// # Contract
//
// An [Agent] performs one repeatable unit of work per [Agent.Perform] call.
// Agents that need one-time setup also implement [Bootstrapper]; embedding
// [Base] supplies a no-op Bootstrap:
//
//	type browseAgent struct {
//		agent.Base
//		http *agent.HTTP
//	}
//
//	func (a *browseAgent) Perform(ctx context.Context) error {
//		resp, err := a.http.Call(ctx, "/products", "GET", nil, nil)
//		if err != nil {
//			return err
//		}
//		return resp.Err()
//	}
//
// One agent value is shared by every concurrent execution registered for it,
// so its state must be safe for concurrent use.
//
// # Network capability
//
// [HTTP] implements [Caller] and [CallStats]. Each call is accounted through
// a [CallCounter]: pending is incremented before the exchange starts, and on
// every exit path pending is decremented and done incremented. Transport
// failures are returned to the caller; HTTP error statuses are not transport
// failures and are reported through [Response.Err].
package agent
