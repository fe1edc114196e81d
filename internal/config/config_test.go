package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRequiresAgents(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Issues()) != 1 || !strings.Contains(verr.Issues()[0], "at least one agent") {
		t.Fatalf("unexpected issues %v", verr.Issues())
	}
}

func TestValidateAgents(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid http agent",
			cfg:  Config{Agents: []AgentConfig{{Name: "a", Kind: AgentKindHTTP, Target: "http://x", Instances: 3}}},
		},
		{
			name: "zero instances allowed",
			cfg:  Config{Agents: []AgentConfig{{Name: "a", Kind: AgentKindIdle, Instances: 0}}},
		},
		{
			name: "relative target with base url",
			cfg:  Config{BaseURL: "http://x", Agents: []AgentConfig{{Name: "a", Target: "/users", Instances: 1}}},
		},
		{
			name:    "negative instances",
			cfg:     Config{Agents: []AgentConfig{{Name: "a", Kind: AgentKindIdle, Instances: -1}}},
			wantErr: "instances must be >= 0",
		},
		{
			name:    "missing name",
			cfg:     Config{Agents: []AgentConfig{{Kind: AgentKindIdle}}},
			wantErr: "name is required",
		},
		{
			name: "duplicate names",
			cfg: Config{Agents: []AgentConfig{
				{Name: "A", Kind: AgentKindIdle},
				{Name: "a", Kind: AgentKindIdle},
			}},
			wantErr: "duplicate name",
		},
		{
			name:    "http without target",
			cfg:     Config{Agents: []AgentConfig{{Name: "a", Kind: AgentKindHTTP}}},
			wantErr: "target is required",
		},
		{
			name:    "websocket scheme",
			cfg:     Config{Agents: []AgentConfig{{Name: "ws", Kind: AgentKindWebSocket, Target: "http://x", Messages: []string{"hi"}}}},
			wantErr: "ws:// or wss://",
		},
		{
			name:    "websocket without messages",
			cfg:     Config{Agents: []AgentConfig{{Name: "ws", Kind: AgentKindWebSocket, Target: "ws://x"}}},
			wantErr: "at least one message",
		},
		{
			name:    "unknown kind",
			cfg:     Config{Agents: []AgentConfig{{Name: "a", Kind: "grpc"}}},
			wantErr: "kind must be",
		},
		{
			name: "token header without path",
			cfg: Config{Agents: []AgentConfig{{
				Name: "a", Target: "http://x",
				Bootstrap: &BootstrapConfig{Target: "http://x/login", TokenHeader: "Authorization"},
			}}},
			wantErr: "token_header requires token_path",
		},
		{
			name: "token path and regex",
			cfg: Config{Agents: []AgentConfig{{
				Name: "a", Target: "http://x",
				Bootstrap: &BootstrapConfig{Target: "http://x/login", TokenPath: "token", TokenRegex: "t=(\\w+)"},
			}}},
			wantErr: "mutually exclusive",
		},
		{
			name: "invalid token regex",
			cfg: Config{Agents: []AgentConfig{{
				Name: "a", Target: "http://x",
				Bootstrap: &BootstrapConfig{Target: "http://x/login", TokenRegex: "(["},
			}}},
			wantErr: "invalid regex",
		},
		{
			name:    "report format",
			cfg:     Config{ReportFormat: "xml", Agents: []AgentConfig{{Name: "a", Kind: AgentKindIdle}}},
			wantErr: "report_format",
		},
		{
			name:    "sample rate",
			cfg:     Config{Tracing: TracingConfig{SampleRate: 2}, Agents: []AgentConfig{{Name: "a", Kind: AgentKindIdle}}},
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTracingConfigPropagation(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if (TracingConfig{}).ShouldPropagate() {
		t.Error("disabled tracing should not propagate")
	}
	if !(TracingConfig{Endpoint: "localhost:4317"}).ShouldPropagate() {
		t.Error("enabled tracing should propagate by default")
	}
	off := false
	if (TracingConfig{Endpoint: "localhost:4317", Propagate: &off}).ShouldPropagate() {
		t.Error("explicit propagate=false should win")
	}
}
