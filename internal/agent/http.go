package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/sagent/internal/httpclient"
	"github.com/torosent/sagent/internal/tracing"
)

const maxBodyReadSize = 1024 * 1024

// HTTPOptions configure an HTTP capability.
type HTTPOptions struct {
	Client    *http.Client      // shared client; built from Timeout when nil
	Timeout   time.Duration     // per-call timeout for the default client
	BaseURL   string            // relative addresses are resolved against it
	Headers   map[string]string // sent with every call, per-call headers win
	Tracer    trace.Tracer      // optional; no-op when nil
	Propagate bool              // inject W3C trace headers
}

// HTTP is the network capability agents are composed with. Embed a *HTTP in
// an agent to expose its counters to the reporter.
type HTTP struct {
	client    *http.Client
	baseURL   string
	headers   map[string]string
	tracer    trace.Tracer
	propagate bool
	counter   CallCounter
}

// NewHTTP builds an HTTP capability.
func NewHTTP(opts HTTPOptions) *HTTP {
	client := opts.Client
	if client == nil {
		client = httpclient.NewClient(opts.Timeout)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("sagent")
	}
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return &HTTP{
		client:    client,
		baseURL:   opts.BaseURL,
		headers:   headers,
		tracer:    tracer,
		propagate: opts.Propagate,
	}
}

// Call performs one exchange and returns the fully read response. The
// returned error is non-nil only when the exchange itself failed.
func (h *HTTP) Call(ctx context.Context, address, method string, body any, headers map[string]string) (*Response, error) {
	release := h.counter.Track()
	defer release()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartCallSpan(ctx, h.tracer, "http", method, address)

	resp, err := h.exchange(ctx, address, method, body, headers)
	if err != nil {
		h.counter.Observe("ERROR")
		tracing.EndSpan(span, err)
		return nil, err
	}

	h.counter.ObserveStatus(resp.StatusCode)
	tracing.EndSpan(span, resp.Err(), attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (h *HTTP) exchange(ctx context.Context, address, method string, body any, headers map[string]string) (*Response, error) {
	merged := h.headers
	if len(headers) > 0 {
		merged = make(map[string]string, len(h.headers)+len(headers))
		for k, v := range h.headers {
			merged[k] = v
		}
		for k, v := range headers {
			merged[k] = v
		}
	}

	req, err := httpclient.NewRequest(ctx, method, h.baseURL, address, body, merged)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if h.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// BaseURL returns the base URL relative addresses are resolved against.
func (h *HTTP) BaseURL() string { return h.baseURL }

// PendingCalls implements CallStats.
func (h *HTTP) PendingCalls() int64 { return h.counter.PendingCalls() }

// DoneCalls implements CallStats.
func (h *HTTP) DoneCalls() int64 { return h.counter.DoneCalls() }

// StatusCodes returns how many calls ended with each status code. Transport
// failures are counted under "ERROR".
func (h *HTTP) StatusCodes() map[string]int64 { return h.counter.StatusCodes() }

// ResetStats clears the done count and status codes.
func (h *HTTP) ResetStats() { h.counter.Reset() }
