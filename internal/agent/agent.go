package agent

import (
	"context"
	"net/http"
)

// Agent is a unit of repeatable work. Perform is invoked over and over for
// the lifetime of an execution; a returned error ends that execution.
// Implementations must return control regularly and must not loop forever
// inside a single call.
type Agent interface {
	Perform(ctx context.Context) error
}

// Bootstrapper is implemented by agents that need one-time setup before
// their first Perform.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// Factory creates the agent value for one registration.
type Factory func() Agent

// Base can be embedded to get the default no-op Bootstrap.
type Base struct{}

// Bootstrap does nothing.
func (Base) Bootstrap(context.Context) error { return nil }

// CallStats exposes read-only counters of delegated network calls.
type CallStats interface {
	PendingCalls() int64
	DoneCalls() int64
}

// Caller performs one network exchange.
type Caller interface {
	Call(ctx context.Context, address, method string, body any, headers map[string]string) (*Response, error)
}

// Response is a fully read response of one exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Err returns an *HTTPError for 4xx and 5xx responses and nil otherwise.
func (r *Response) Err() error {
	if r == nil || r.StatusCode < 400 {
		return nil
	}
	body := string(r.Body)
	if len(body) > maxLoggedBodyBytes {
		body = body[:maxLoggedBodyBytes]
	}
	return &HTTPError{StatusCode: r.StatusCode, Body: body}
}

// StatsOf returns the call counters of a, or zeros when a has no network
// capability.
func StatsOf(a Agent) (pending, done int64) {
	stats, ok := a.(CallStats)
	if !ok || stats == nil {
		return 0, 0
	}
	return stats.PendingCalls(), stats.DoneCalls()
}
