package exporter

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/torosent/sagent/internal/output"
)

type fixedSource struct {
	p output.Progress
}

func (f fixedSource) Snapshot() output.Progress { return f.p }

func TestCollectorExposesProgress(t *testing.T) {
	src := fixedSource{p: output.Progress{Performs: 42, CallsDone: 17, CallsPending: 3, Active: 5, Failed: 1}}
	c := NewCollector(src)

	if got := testutil.CollectAndCount(c); got != 5 {
		t.Fatalf("expected 5 metrics, got %d", got)
	}

	expected := `
# HELP sagent_performs_total Completed performs across all agents.
# TYPE sagent_performs_total counter
sagent_performs_total 42
# HELP sagent_calls_pending Network calls currently in flight.
# TYPE sagent_calls_pending gauge
sagent_calls_pending 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "sagent_performs_total", "sagent_calls_pending"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestHandlerRoutes(t *testing.T) {
	handler, err := Handler(fixedSource{p: output.Progress{Performs: 7}})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "sagent_performs_total 7") {
		t.Fatalf("expected performs metric, got:\n%s", body)
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", resp.StatusCode, body)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	handler, err := Handler(fixedSource{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, ln, handler, hclog.NewNullLogger()) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
