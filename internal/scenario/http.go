package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/torosent/sagent/internal/agent"
	"github.com/torosent/sagent/internal/config"
	"github.com/torosent/sagent/internal/extractor"
)

// HTTPAgent calls one target per perform.
type HTTPAgent struct {
	*agent.HTTP

	cfg    config.AgentConfig
	body   any
	logger hclog.Logger

	// set by Bootstrap, read-only afterwards
	session map[string]string
}

func NewHTTPAgent(ac config.AgentConfig, deps Deps, logger hclog.Logger) *HTTPAgent {
	deps.normalize()
	if logger == nil {
		logger = deps.Logger
	}
	return &HTTPAgent{
		HTTP: agent.NewHTTP(agent.HTTPOptions{
			Client:    deps.Client,
			BaseURL:   deps.BaseURL,
			Headers:   ac.Headers,
			Tracer:    deps.Tracer,
			Propagate: deps.Propagate,
		}),
		cfg:    ac,
		body:   requestBody(ac.Body),
		logger: logger,
	}
}

// Bootstrap makes the configured login call and keeps the token extracted
// from its response.
func (h *HTTPAgent) Bootstrap(ctx context.Context) error {
	b := h.cfg.Bootstrap
	if b == nil {
		return nil
	}

	resp, err := h.Call(ctx, b.Target, b.Method, requestBody(b.Body), b.Headers)
	if err != nil {
		return fmt.Errorf("bootstrap call: %w", err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("bootstrap call: %w", err)
	}
	rule := b.TokenRule()
	if rule.Empty() {
		return nil
	}

	token, err := extractor.Extract(resp.Body, rule)
	if err != nil {
		return fmt.Errorf("bootstrap token: %w", err)
	}
	h.session = map[string]string{b.TokenHeader: tokenValue(b.TokenHeader, token)}
	h.logger.Debug("session established", "header", b.TokenHeader)
	return nil
}

// Perform makes one call to the target. Error statuses fail the execution
// unless allow_error_status is set.
func (h *HTTPAgent) Perform(ctx context.Context) error {
	resp, err := h.Call(ctx, h.cfg.Target, h.cfg.Method, h.body, h.session)
	if err != nil {
		return err
	}
	if h.cfg.AllowErrorStatus {
		return nil
	}
	return resp.Err()
}

// tokenValue prefixes bare tokens with Bearer when sent as Authorization.
func tokenValue(header, token string) string {
	if strings.EqualFold(header, "Authorization") && !strings.Contains(token, " ") {
		return "Bearer " + token
	}
	return token
}
