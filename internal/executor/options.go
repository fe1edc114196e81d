package executor

import (
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/sagent/internal/metrics"
)

// Options configure the Executor.
type Options struct {
	Logger    hclog.Logger       // failure and lifecycle logging (optional)
	Collector *metrics.Collector // perform latencies and failures (optional)
	Tracer    trace.Tracer       // spans per bootstrap and perform (optional)
}

func (o *Options) normalize() {
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("sagent")
	}
}
