package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sagent",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Single-agent shortcut
	flags.String("target", "", "Target URL for a single agent defined on the command line")
	flags.String("name", DefaultAgentName, "Name of the command-line agent")
	flags.String("kind", string(AgentKindHTTP), "Kind of the command-line agent: 'http', 'websocket' or 'idle'")
	flags.String("method", http.MethodGet, "HTTP method used by the command-line agent")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.StringSlice("message", nil, "WebSocket message to send on every perform (repeatable)")
	flags.IntP("instances", "c", 1, "Number of concurrent executions sharing the command-line agent")
	flags.Bool("allow-error-status", false, "Keep an HTTP agent running when it receives 4xx/5xx responses")

	// Run control
	flags.String("base-url", "", "Base URL that relative agent targets are resolved against")
	flags.Duration("timeout", DefaultTimeout, "Per-call timeout")
	flags.Duration("report-interval", DefaultReportInterval, "Interval between progress lines (0 disables the reporter output)")
	flags.Duration("shutdown-timeout", DefaultShutdownTimeout, "Max time to wait for executions to drain after cancellation")

	// Output
	flags.String("report-format", string(ReportFormatText), "Final report format: 'text', 'json' or 'yaml'")
	flags.Bool("json-output", false, "Shorthand for --report-format=json")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported in spans")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("base-url") {
		val, err := fs.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = val
	}
	if err := overrideDuration(fs, "timeout", &cfg.Timeout); err != nil {
		return err
	}
	if err := overrideDuration(fs, "report-interval", &cfg.ReportInterval); err != nil {
		return err
	}
	if err := overrideDuration(fs, "shutdown-timeout", &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if fs.Changed("report-format") {
		val, err := fs.GetString("report-format")
		if err != nil {
			return err
		}
		cfg.ReportFormat = ReportFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		if val {
			cfg.ReportFormat = ReportFormatJSON
		}
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("log-json") {
		val, err := fs.GetBool("log-json")
		if err != nil {
			return err
		}
		cfg.LogJSON = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if err := applyTracingFlags(&cfg.Tracing, fs); err != nil {
		return err
	}

	if fs.Changed("target") {
		a, err := agentFromFlags(fs)
		if err != nil {
			return err
		}
		cfg.Agents = upsertAgent(cfg.Agents, a)
	}
	return nil
}

func applyTracingFlags(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	return nil
}

// agentFromFlags builds the single command-line agent.
func agentFromFlags(fs *pflag.FlagSet) (AgentConfig, error) {
	var a AgentConfig
	var err error
	if a.Target, err = fs.GetString("target"); err != nil {
		return a, err
	}
	if a.Name, err = fs.GetString("name"); err != nil {
		return a, err
	}
	kind, err := fs.GetString("kind")
	if err != nil {
		return a, err
	}
	a.Kind = AgentKind(kind)
	if a.Method, err = fs.GetString("method"); err != nil {
		return a, err
	}
	if a.Body, err = fs.GetString("body"); err != nil {
		return a, err
	}
	if a.Instances, err = fs.GetInt("instances"); err != nil {
		return a, err
	}
	if a.AllowErrorStatus, err = fs.GetBool("allow-error-status"); err != nil {
		return a, err
	}
	if a.Messages, err = fs.GetStringSlice("message"); err != nil {
		return a, err
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return a, err
	}
	for _, entry := range vals {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return a, fmt.Errorf("header must be in key=value format: %s", entry)
		}
		key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
		if key == "" {
			return a, fmt.Errorf("header key cannot be empty")
		}
		if a.Headers == nil {
			a.Headers = map[string]string{}
		}
		a.Headers[key] = strings.TrimSpace(parts[1])
	}
	return a, nil
}

// upsertAgent replaces a file-defined agent with the same name, or appends.
func upsertAgent(agents []AgentConfig, a AgentConfig) []AgentConfig {
	for i := range agents {
		if strings.EqualFold(strings.TrimSpace(agents[i].Name), strings.TrimSpace(a.Name)) {
			agents[i] = a
			return agents
		}
	}
	return append(agents, a)
}

func overrideDuration(fs *pflag.FlagSet, name string, dst *time.Duration) error {
	if !fs.Changed(name) {
		return nil
	}
	val, err := fs.GetDuration(name)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
