package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultAgentName       = "default"
	DefaultTimeout         = 30 * time.Second
	DefaultReportInterval  = time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file into
// a Config. Flag values override file values.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := defaultConfig()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	for i := range cfg.Agents {
		normalizeAgent(&cfg.Agents[i])
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		ReportInterval:  DefaultReportInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
		ReportFormat:    ReportFormatText,
		LogLevel:        "info",
		Tracing:         TracingConfig{SampleRate: 1.0},
	}
}

func normalizeAgent(a *AgentConfig) {
	a.Name = strings.TrimSpace(a.Name)
	a.Target = strings.TrimSpace(a.Target)
	a.Method = strings.ToUpper(strings.TrimSpace(a.Method))
	if a.Method == "" {
		a.Method = http.MethodGet
	}
	a.Kind = AgentKind(strings.ToLower(strings.TrimSpace(string(a.Kind))))
	if a.Kind == "" {
		a.Kind = AgentKindHTTP
	}
	if a.Bootstrap != nil {
		a.Bootstrap.Method = strings.ToUpper(strings.TrimSpace(a.Bootstrap.Method))
		if a.Bootstrap.Method == "" {
			a.Bootstrap.Method = http.MethodPost
		}
		if !a.Bootstrap.TokenRule().Empty() && a.Bootstrap.TokenHeader == "" {
			a.Bootstrap.TokenHeader = "Authorization"
		}
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "baseurl", "base_url", "base-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		cfg.BaseURL = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "reportinterval", "report_interval", "report-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("report_interval: %w", err)
		}
		cfg.ReportInterval = dur
	}

	if raw, ok := lookupSetting(settings, "shutdowntimeout", "shutdown_timeout", "shutdown-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "reportformat", "report_format", "report-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("report_format: %w", err)
		}
		cfg.ReportFormat = ReportFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = val
	}

	if raw, ok := lookupSetting(settings, "logjson", "log_json", "log-json"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("log_json: %w", err)
		}
		cfg.LogJSON = val
	}

	if raw, ok := lookupSetting(settings, "metricsaddr", "metrics_addr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metrics_addr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	if raw, ok := lookupSetting(settings, "agents"); ok {
		agents, err := parseAgents(raw)
		if err != nil {
			return fmt.Errorf("agents: %w", err)
		}
		cfg.Agents = agents
	}

	return nil
}

func parseAgents(value interface{}) ([]AgentConfig, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	agents := make([]AgentConfig, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		a, err := buildAgent(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func buildAgent(settings map[string]interface{}) (AgentConfig, error) {
	a := AgentConfig{Instances: 1}
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("name: %w", err)
		}
		a.Name = val
	}
	if raw, ok := lookupSetting(settings, "kind", "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("kind: %w", err)
		}
		a.Kind = AgentKind(val)
	}
	if raw, ok := lookupSetting(settings, "instances", "task_instances", "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("instances: %w", err)
		}
		a.Instances = val
	}
	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("target: %w", err)
		}
		a.Target = val
	}
	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("method: %w", err)
		}
		a.Method = val
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := parseHeaders(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("headers: %w", err)
		}
		a.Headers = hdrs
	}
	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := asString(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("body: %w", err)
		}
		a.Body = val
	}
	if raw, ok := lookupSetting(settings, "allowerrorstatus", "allow_error_status", "allow-error-status"); ok {
		val, err := asBool(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("allow_error_status: %w", err)
		}
		a.AllowErrorStatus = val
	}
	if raw, ok := lookupSetting(settings, "messages"); ok {
		msgs, err := asStringSlice(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("messages: %w", err)
		}
		a.Messages = msgs
	}
	if raw, ok := lookupSetting(settings, "bootstrap"); ok && raw != nil {
		b, err := parseBootstrap(raw)
		if err != nil {
			return AgentConfig{}, fmt.Errorf("bootstrap: %w", err)
		}
		a.Bootstrap = b
	}
	return a, nil
}

func parseBootstrap(value interface{}) (*BootstrapConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return nil, err
	}
	b := &BootstrapConfig{}
	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		b.Target = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return nil, fmt.Errorf("method: %w", err)
		}
		b.Method = val
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := parseHeaders(raw)
		if err != nil {
			return nil, fmt.Errorf("headers: %w", err)
		}
		b.Headers = hdrs
	}
	if raw, ok := lookupSetting(settings, "body"); ok {
		val, err := asString(raw)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		b.Body = val
	}
	if raw, ok := lookupSetting(settings, "tokenpath", "token_path", "token-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return nil, fmt.Errorf("token_path: %w", err)
		}
		b.TokenPath = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "tokenregex", "token_regex", "token-regex"); ok {
		val, err := asString(raw)
		if err != nil {
			return nil, fmt.Errorf("token_regex: %w", err)
		}
		b.TokenRegex = val
	}
	if raw, ok := lookupSetting(settings, "tokenheader", "token_header", "token-header"); ok {
		val, err := asString(raw)
		if err != nil {
			return nil, fmt.Errorf("token_header: %w", err)
		}
		b.TokenHeader = http.CanonicalHeaderKey(strings.TrimSpace(val))
	}
	return b, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	t := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return t, nil
}

func parseHeaders(value interface{}) (map[string]string, error) {
	hdrs, err := asStringMap(value)
	if err != nil {
		return nil, err
	}
	if len(hdrs) == 0 {
		return nil, nil
	}
	result := make(map[string]string, len(hdrs))
	for key, val := range hdrs {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("key cannot be empty")
		}
		result[http.CanonicalHeaderKey(trimmedKey)] = val
	}
	return result, nil
}
