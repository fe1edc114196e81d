package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/sagent/internal/extractor"
)

// AgentKind selects one of the built-in agent implementations.
type AgentKind string

const (
	AgentKindHTTP      AgentKind = "http"
	AgentKindWebSocket AgentKind = "websocket"
	AgentKindIdle      AgentKind = "idle"
)

// ReportFormat selects how the final summary is printed.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
)

type Config struct {
	Agents          []AgentConfig `mapstructure:"agents"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ReportInterval  time.Duration `mapstructure:"report_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReportFormat    ReportFormat  `mapstructure:"report_format"`
	LogLevel        string        `mapstructure:"log_level"`
	LogJSON         bool          `mapstructure:"log_json"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	Tracing         TracingConfig `mapstructure:"tracing"`
	ConfigFile      string        `mapstructure:"-"`
}

// AgentConfig declares one registered agent type and how many concurrent
// executions share it.
type AgentConfig struct {
	Name             string            `mapstructure:"name"`
	Kind             AgentKind         `mapstructure:"kind"`
	Instances        int               `mapstructure:"instances"`
	Target           string            `mapstructure:"target"`
	Method           string            `mapstructure:"method"`
	Headers          map[string]string `mapstructure:"headers"`
	Body             string            `mapstructure:"body"`
	AllowErrorStatus bool              `mapstructure:"allow_error_status"`
	Messages         []string          `mapstructure:"messages"`
	Bootstrap        *BootstrapConfig  `mapstructure:"bootstrap"`
}

// BootstrapConfig describes the one-time call an HTTP agent makes before its
// first perform, typically a login whose response carries a session token.
type BootstrapConfig struct {
	Target      string            `mapstructure:"target"`
	Method      string            `mapstructure:"method"`
	Headers     map[string]string `mapstructure:"headers"`
	Body        string            `mapstructure:"body"`
	TokenPath   string            `mapstructure:"token_path"`
	TokenRegex  string            `mapstructure:"token_regex"`
	TokenHeader string            `mapstructure:"token_header"`
}

// TokenRule returns the extraction rule for the session token.
func (b BootstrapConfig) TokenRule() extractor.Rule {
	return extractor.Rule{JSONPath: b.TokenPath, Regex: b.TokenRegex}
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether any tracing setting was provided.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C headers are injected into outgoing
// calls. Defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if len(c.Agents) == 0 {
		issues = append(issues, "at least one agent is required (use --target or a config file, --help for usage)")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.ReportInterval < 0 {
		issues = append(issues, "report_interval must be >= 0")
	}
	if c.ShutdownTimeout < 0 {
		issues = append(issues, "shutdown_timeout must be >= 0")
	}
	switch c.ReportFormat {
	case "", ReportFormatText, ReportFormatJSON, ReportFormatYAML:
	default:
		issues = append(issues, fmt.Sprintf("report_format %q is not supported", c.ReportFormat))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}

	issues = append(issues, validateAgents(c.Agents, c.BaseURL)...)

	total := 0
	for _, a := range c.Agents {
		total += a.Instances
	}
	if total > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d executions). Ensure you have authorization to test the target system.\n", total)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateAgents(agents []AgentConfig, baseURL string) []string {
	var issues []string
	seenNames := map[string]int{}
	for idx, a := range agents {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("agents[%d]: name is required", idx))
		} else {
			key := strings.ToLower(name)
			if prev, ok := seenNames[key]; ok {
				issues = append(issues, fmt.Sprintf("agents[%d]: duplicate name also defined at index %d", idx, prev))
			} else {
				seenNames[key] = idx
			}
		}
		if a.Instances < 0 {
			issues = append(issues, fmt.Sprintf("agents[%d]: instances must be >= 0", idx))
		}

		kind := a.Kind
		if kind == "" {
			kind = AgentKindHTTP
		}
		switch kind {
		case AgentKindHTTP:
			if strings.TrimSpace(a.Target) == "" && strings.TrimSpace(baseURL) == "" {
				issues = append(issues, fmt.Sprintf("agents[%d]: target is required for http agents", idx))
			}
			if a.Bootstrap != nil {
				if strings.TrimSpace(a.Bootstrap.Target) == "" && strings.TrimSpace(baseURL) == "" {
					issues = append(issues, fmt.Sprintf("agents[%d]: bootstrap target is required", idx))
				}
				rule := a.Bootstrap.TokenRule()
				if a.Bootstrap.TokenHeader != "" && rule.Empty() {
					issues = append(issues, fmt.Sprintf("agents[%d]: bootstrap token_header requires token_path or token_regex", idx))
				}
				if err := rule.Validate(); err != nil {
					issues = append(issues, fmt.Sprintf("agents[%d]: bootstrap token: %v", idx, err))
				}
			}
		case AgentKindWebSocket:
			target := strings.ToLower(strings.TrimSpace(a.Target))
			if !strings.HasPrefix(target, "ws://") && !strings.HasPrefix(target, "wss://") {
				issues = append(issues, fmt.Sprintf("agents[%d]: websocket target must start with ws:// or wss://", idx))
			}
			if len(a.Messages) == 0 {
				issues = append(issues, fmt.Sprintf("agents[%d]: websocket agents need at least one message", idx))
			}
		case AgentKindIdle:
		default:
			issues = append(issues, fmt.Sprintf("agents[%d]: kind must be 'http', 'websocket' or 'idle', got %q", idx, a.Kind))
		}
	}
	return issues
}
