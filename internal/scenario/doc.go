// Package scenario builds the agents declared in configuration.
//
// Three kinds are available:
//   - http: calls one target per perform; an optional bootstrap call can
//     log in and carry a token extracted from its JSON response into every
//     later call.
//   - websocket: exchanges the configured messages per perform over pooled
//     connections; bootstrap warms the first connection.
//   - idle: performs nothing, useful to measure harness overhead.
package scenario
