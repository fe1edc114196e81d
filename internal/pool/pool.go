package pool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("pool: closed")

// Poolable represents any client that can be pooled and reused.
type Poolable interface {
	Connect(ctx context.Context) error
	Close() error
}

// ConnectionPool keeps idle connections keyed by target+headers. At most
// size idle connections are kept per key; extra ones are closed on Release.
type ConnectionPool[T Poolable] struct {
	mu     sync.Mutex
	idle   map[string][]T
	size   int
	closed bool
}

// NewConnectionPool creates a new connection pool with the specified max idle size per key.
func NewConnectionPool[T Poolable](size int) *ConnectionPool[T] {
	if size <= 0 {
		size = 10 // default size
	}
	return &ConnectionPool[T]{
		idle: make(map[string][]T),
		size: size,
	}
}

// Acquire returns an idle connection for key, or creates and connects a new
// one with factory. reused reports whether the connection came from the pool.
func (p *ConnectionPool[T]) Acquire(ctx context.Context, key string, factory func() T) (client T, reused bool, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return client, false, ErrClosed
	}
	if idle := p.idle[key]; len(idle) > 0 {
		client = idle[len(idle)-1]
		p.idle[key] = idle[:len(idle)-1]
		p.mu.Unlock()
		return client, true, nil
	}
	p.mu.Unlock()

	client = factory()
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		var zero T
		return zero, false, err
	}
	return client, false, nil
}

// Release hands a connection back. Broken connections and connections over
// the idle limit are closed instead of kept.
func (p *ConnectionPool[T]) Release(key string, client T, healthy bool) error {
	if !healthy {
		return client.Close()
	}

	p.mu.Lock()
	if p.closed || len(p.idle[key]) >= p.size {
		p.mu.Unlock()
		return client.Close()
	}
	p.idle[key] = append(p.idle[key], client)
	p.mu.Unlock()
	return nil
}

// Idle returns the number of idle connections kept for key.
func (p *ConnectionPool[T]) Idle(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[key])
}

// Close closes all idle connections. Connections released afterwards are
// closed immediately.
func (p *ConnectionPool[T]) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = make(map[string][]T)
	p.closed = true
	p.mu.Unlock()

	var errs []string
	for _, clients := range idle {
		for _, client := range clients {
			if err := client.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MakePoolKey generates a deterministic key from a target URL and headers.
func MakePoolKey(target string, headers http.Header) string {
	var sb strings.Builder
	sb.WriteString(target)
	sb.WriteString("|")

	// Sort keys for deterministic key generation
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(strings.Join(headers[k], ","))
		sb.WriteString(";")
	}
	return sb.String()
}
