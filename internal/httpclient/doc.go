// Package httpclient provides the HTTP plumbing behind the agent network
// capability.
//
// It owns two concerns:
//   - building one request per call from an address, a method, an optional
//     body and optional headers ([NewRequest], [ResolveURL], [NewBodySource])
//   - a shared [http.Client] tuned for many concurrent agents ([NewClient])
//
// Bodies given as []byte or string are sent verbatim; any other non-nil value
// is encoded as JSON and the Content-Type header is set accordingly:
//
//	req, err := httpclient.NewRequest(ctx, "POST", "http://api.local", "/login",
//		map[string]string{"user": "demo"}, nil)
//
// Response handling and call accounting live in [github.com/torosent/sagent/internal/agent].
package httpclient
