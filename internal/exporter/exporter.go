// Package exporter serves live run progress in Prometheus format.
package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/sagent/internal/output"
)

const namespace = "sagent"

// Collector exposes progress snapshots as Prometheus metrics.
type Collector struct {
	source output.Source

	performs     *prometheus.Desc
	callsDone    *prometheus.Desc
	callsPending *prometheus.Desc
	active       *prometheus.Desc
	failed       *prometheus.Desc
}

func NewCollector(source output.Source) *Collector {
	return &Collector{
		source: source,
		performs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "performs_total"),
			"Completed performs across all agents.", nil, nil),
		callsDone: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "calls", "done_total"),
			"Finished network calls across all agents.", nil, nil),
		callsPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "calls", "pending"),
			"Network calls currently in flight.", nil, nil),
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "executions", "active"),
			"Agent executions currently running.", nil, nil),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "executions", "failed_total"),
			"Agent executions that ended with a failure.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.performs
	ch <- c.callsDone
	ch <- c.callsPending
	ch <- c.active
	ch <- c.failed
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	p := c.source.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.performs, prometheus.CounterValue, float64(p.Performs))
	ch <- prometheus.MustNewConstMetric(c.callsDone, prometheus.CounterValue, float64(p.CallsDone))
	ch <- prometheus.MustNewConstMetric(c.callsPending, prometheus.GaugeValue, float64(p.CallsPending))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(p.Active))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(p.Failed))
}

// Handler returns the router serving /metrics and /healthz.
func Handler(source output.Source) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(NewCollector(source)); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	return r, nil
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, source output.Source, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	handler, err := Handler(source)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, handler, logger)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger hclog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
