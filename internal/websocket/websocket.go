package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by operations on a client without a live
// connection.
var ErrNotConnected = errors.New("websocket: not connected")

// Message represents a WebSocket message to send or receive.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Text builds a text message.
func Text(s string) Message {
	return Message{Type: websocket.TextMessage, Data: []byte(s)}
}

// Metrics captures WebSocket-specific counters.
type Metrics struct {
	ConnectionDuration time.Duration
	MessagesSent       int64
	MessagesReceived   int64
	BytesSent          int64
	BytesReceived      int64
	Errors             int64
}

// Config configures the WebSocket client behavior.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxMessageSize   int64
}

// Client is a single WebSocket connection. Writes are serialised; one
// reader at a time is expected.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	connectTime time.Time

	messagesSent atomic.Int64
	messagesRecv atomic.Int64
	bytesSent    atomic.Int64
	bytesRecv    atomic.Int64
	errors       atomic.Int64
}

// NewClient creates a new WebSocket client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 1024 * 1024 // 1MB default
	}

	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// Connect establishes the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.New("websocket: already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.errors.Add(1)
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.conn = conn
	c.connectTime = time.Now()
	return nil
}

// Connected reports whether the client holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one message.
func (c *Client) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("write message: %w", err)
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(int64(len(msg.Data)))
	return nil
}

// Receive reads one message. The read is bounded by the context deadline
// and the configured read timeout.
func (c *Client) Receive(ctx context.Context) (Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return Message{}, ErrNotConnected
	}
	if err := conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		return Message{}, err
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		c.errors.Add(1)
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	c.messagesRecv.Add(1)
	c.bytesRecv.Add(int64(len(data)))
	return Message{Type: msgType, Data: data}, nil
}

// Exchange sends msg and waits for the next incoming message.
func (c *Client) Exchange(ctx context.Context, msg Message) (Message, error) {
	if err := c.Send(ctx, msg); err != nil {
		return Message{}, err
	}
	return c.Receive(ctx)
}

// Close closes the connection gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)
	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}

// Metrics returns the current metrics snapshot.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	connectTime := c.connectTime
	c.mu.Unlock()

	var duration time.Duration
	if !connectTime.IsZero() {
		duration = time.Since(connectTime)
	}
	return Metrics{
		ConnectionDuration: duration,
		MessagesSent:       c.messagesSent.Load(),
		MessagesReceived:   c.messagesRecv.Load(),
		BytesSent:          c.bytesSent.Load(),
		BytesReceived:      c.bytesRecv.Load(),
		Errors:             c.errors.Load(),
	}
}

// deadline picks the earlier of the context deadline and now+timeout. The
// zero time means no deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}
