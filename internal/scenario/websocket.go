package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gws "github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/sagent/internal/agent"
	"github.com/torosent/sagent/internal/config"
	"github.com/torosent/sagent/internal/pool"
	"github.com/torosent/sagent/internal/tracing"
	ws "github.com/torosent/sagent/internal/websocket"
)

// WebSocketAgent exchanges the configured messages per perform. Each
// message and its reply count as one call.
type WebSocketAgent struct {
	agent.CallCounter

	target   string
	headers  http.Header
	messages []ws.Message
	cfg      ws.Config
	key      string
	pool     *pool.ConnectionPool[*ws.Client]
	tracer   trace.Tracer
	logger   hclog.Logger
}

func NewWebSocketAgent(ac config.AgentConfig, deps Deps, logger hclog.Logger) *WebSocketAgent {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	headers := toHeader(ac.Headers)
	messages := make([]ws.Message, 0, len(ac.Messages))
	for _, m := range ac.Messages {
		messages = append(messages, ws.Text(m))
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("sagent")
	}
	return &WebSocketAgent{
		target:   ac.Target,
		headers:  headers,
		messages: messages,
		cfg: ws.Config{
			URL:          ac.Target,
			Headers:      headers,
			ReadTimeout:  deps.Timeout,
			WriteTimeout: deps.Timeout,
		},
		key:    pool.MakePoolKey(ac.Target, headers),
		pool:   pool.NewConnectionPool[*ws.Client](ac.Instances),
		tracer: tracer,
		logger: logger,
	}
}

func (w *WebSocketAgent) newClient() *ws.Client {
	return ws.NewClient(w.cfg)
}

// Bootstrap opens the first connection and parks it in the pool.
func (w *WebSocketAgent) Bootstrap(ctx context.Context) error {
	client, _, err := w.pool.Acquire(ctx, w.key, w.newClient)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	return w.pool.Release(w.key, client, true)
}

// Perform sends every message on one pooled connection and waits for a
// reply to each.
func (w *WebSocketAgent) Perform(ctx context.Context) error {
	client, reused, err := w.pool.Acquire(ctx, w.key, w.newClient)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	if !reused {
		w.logger.Trace("opened connection", "target", w.target)
	}

	for _, msg := range w.messages {
		if err := w.exchange(ctx, client, msg); err != nil {
			_ = w.pool.Release(w.key, client, false)
			return err
		}
	}
	return w.pool.Release(w.key, client, true)
}

func (w *WebSocketAgent) exchange(ctx context.Context, client *ws.Client, msg ws.Message) error {
	release := w.Track()
	defer release()

	ctx, span := tracing.StartCallSpan(ctx, w.tracer, "websocket", "", w.target)
	_, err := client.Exchange(ctx, msg)
	tracing.EndSpan(span, err)
	if err != nil {
		w.Observe(websocketStatusFromError(err))
		return err
	}
	w.Observe("OK")
	return nil
}

// Close closes pooled connections.
func (w *WebSocketAgent) Close() error {
	return w.pool.Close()
}

func websocketStatusFromError(err error) string {
	var closeErr *gws.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != 0 {
		return strconv.Itoa(closeErr.Code)
	}
	return "ERROR"
}
