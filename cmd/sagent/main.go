package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/sagent/internal/config"
	"github.com/torosent/sagent/internal/executor"
	"github.com/torosent/sagent/internal/exporter"
	"github.com/torosent/sagent/internal/metrics"
	"github.com/torosent/sagent/internal/orchestrator"
	"github.com/torosent/sagent/internal/output"
	"github.com/torosent/sagent/internal/scenario"
	"github.com/torosent/sagent/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return runContext(ctx, args, os.Stdout, os.Stderr)
}

// runContext runs every configured agent until ctx is cancelled and then
// prints the final report to stdout.
func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg, stderr)

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	exec := executor.New(executor.Options{
		Logger:    logger.Named("executor"),
		Collector: metrics.NewCollector(),
		Tracer:    provider.Tracer(),
	})
	orch := orchestrator.New(orchestrator.Options{
		ReportInterval:  cfg.ReportInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Writer:          progressWriter(cfg, stdout, stderr),
		Logger:          logger,
		Executor:        exec,
	})

	err = scenario.Register(orch, cfg, scenario.Deps{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Tracer:    provider.Tracer(),
		Propagate: provider.ShouldPropagate(),
		Logger:    logger.Named("agent"),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Begin(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return exporter.Serve(gctx, cfg.MetricsAddr, orch, logger.Named("exporter"))
		})
	}
	runErr := g.Wait()

	closeAgents(orch.Executed(), logger)

	if err := printReport(stdout, cfg.ReportFormat, orch.Report()); err != nil {
		return err
	}
	return runErr
}

func newLogger(cfg *config.Config, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "sagent",
		Level:      level,
		Output:     out,
		JSONFormat: cfg.LogJSON,
	})
}

// progressWriter keeps stdout clean for machine-readable reports.
func progressWriter(cfg *config.Config, stdout, stderr io.Writer) io.Writer {
	if cfg.ReportInterval == 0 {
		return io.Discard
	}
	if cfg.ReportFormat == config.ReportFormatJSON || cfg.ReportFormat == config.ReportFormatYAML {
		return stderr
	}
	return stdout
}

func closeAgents(executed []orchestrator.ExecutedAgent, logger hclog.Logger) {
	for _, ea := range executed {
		closer, ok := ea.Agent.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			logger.Warn("closing agent failed", "agent", ea.Name, "error", err)
		}
	}
}

func printReport(w io.Writer, format config.ReportFormat, report output.Report) error {
	switch format {
	case config.ReportFormatJSON:
		return output.PrintJSONReport(w, report)
	case config.ReportFormatYAML:
		return output.PrintYAMLReport(w, report)
	default:
		output.PrintReport(w, report)
		return nil
	}
}
