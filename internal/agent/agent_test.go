package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/torosent/sagent/internal/agent"
)

type plainAgent struct{}

func (plainAgent) Perform(context.Context) error { return nil }

type countingAgent struct {
	agent.Base
	agent.CallCounter
}

func (*countingAgent) Perform(context.Context) error { return nil }

func TestStatsOfWithoutCapability(t *testing.T) {
	pending, done := agent.StatsOf(plainAgent{})
	if pending != 0 || done != 0 {
		t.Fatalf("expected zero stats, got pending=%d done=%d", pending, done)
	}
}

func TestStatsOfWithCapability(t *testing.T) {
	a := &countingAgent{}
	a.Track()()
	a.Track()()
	release := a.Track()
	defer release()

	pending, done := agent.StatsOf(a)
	if pending != 1 || done != 2 {
		t.Fatalf("expected pending=1 done=2, got pending=%d done=%d", pending, done)
	}
}

func TestBaseBootstrapIsNoop(t *testing.T) {
	var b agent.Base
	if err := b.Bootstrap(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	var _ agent.Bootstrapper = &countingAgent{}
}

func TestResponseErr(t *testing.T) {
	tests := []struct {
		name    string
		resp    *agent.Response
		wantErr bool
	}{
		{"nil response", nil, false},
		{"ok", &agent.Response{StatusCode: 200}, false},
		{"redirect", &agent.Response{StatusCode: 302}, false},
		{"client error", &agent.Response{StatusCode: 404, Body: []byte("missing")}, true},
		{"server error", &agent.Response{StatusCode: 503}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Err()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Err() = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var httpErr *agent.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *HTTPError, got %T", err)
			}
			if httpErr.StatusCode != tt.resp.StatusCode {
				t.Fatalf("expected status %d, got %d", tt.resp.StatusCode, httpErr.StatusCode)
			}
		})
	}
}

func TestResponseErrTruncatesBody(t *testing.T) {
	resp := &agent.Response{StatusCode: 500, Body: []byte(strings.Repeat("x", 4096))}
	var httpErr *agent.HTTPError
	if !errors.As(resp.Err(), &httpErr) {
		t.Fatal("expected *HTTPError")
	}
	if len(httpErr.Body) != 1024 {
		t.Fatalf("expected body truncated to 1024 bytes, got %d", len(httpErr.Body))
	}
}
