package scenario

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/sagent/internal/agent"
	"github.com/torosent/sagent/internal/config"
	"github.com/torosent/sagent/internal/httpclient"
)

// Registrar accepts agent definitions.
type Registrar interface {
	Register(name string, factory agent.Factory, instances int) error
}

// Deps are the collaborators shared by every built agent.
type Deps struct {
	Client    *http.Client // shared HTTP client; built from Timeout when nil
	BaseURL   string
	Timeout   time.Duration
	Tracer    trace.Tracer
	Propagate bool
	Logger    hclog.Logger
}

func (d *Deps) normalize() {
	if d.Client == nil {
		d.Client = httpclient.NewClient(d.Timeout)
	}
	if d.Logger == nil {
		d.Logger = hclog.NewNullLogger()
	}
}

// Register adds every agent of cfg to r in declaration order.
func Register(r Registrar, cfg *config.Config, deps Deps) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if deps.BaseURL == "" {
		deps.BaseURL = cfg.BaseURL
	}
	if deps.Timeout == 0 {
		deps.Timeout = cfg.Timeout
	}
	deps.normalize()

	for _, ac := range cfg.Agents {
		factory, err := Factory(ac, deps)
		if err != nil {
			return err
		}
		if err := r.Register(ac.Name, factory, ac.Instances); err != nil {
			return fmt.Errorf("register agent %s: %w", ac.Name, err)
		}
	}
	return nil
}

// Factory returns the factory for one configured agent.
func Factory(ac config.AgentConfig, deps Deps) (agent.Factory, error) {
	deps.normalize()
	logger := deps.Logger.Named(ac.Name)

	switch ac.Kind {
	case config.AgentKindHTTP, "":
		return func() agent.Agent { return NewHTTPAgent(ac, deps, logger) }, nil
	case config.AgentKindWebSocket:
		return func() agent.Agent { return NewWebSocketAgent(ac, deps, logger) }, nil
	case config.AgentKindIdle:
		return func() agent.Agent { return &IdleAgent{} }, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown kind %q", ac.Name, ac.Kind)
	}
}

// requestBody sends JSON documents as JSON and everything else verbatim.
func requestBody(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return raw
}

func toHeader(headers map[string]string) http.Header {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}
