package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/sagent/internal/metrics"
)

func sampleReport() Report {
	return Report{
		Stats: metrics.Stats{
			Performs:       100,
			Failures:       2,
			Duration:       2 * time.Second,
			PerformsPerSec: 50.0,
			Agents: []metrics.AgentStats{
				{
					Name:            "search",
					Performs:        80,
					Failures:        1,
					FailuresByPhase: map[string]int64{metrics.PhasePerform: 1},
				},
				{
					Name:            "login",
					Performs:        20,
					Failures:        1,
					FailuresByPhase: map[string]int64{metrics.PhaseBootstrap: 1},
				},
			},
			Errors: map[string]int64{"*agent.HTTPError": 2},
		},
		CallsDone: 340,
		StatusBuckets: []metrics.StatusBucket{
			{Agent: "search", Code: "200", Count: 300},
			{Agent: "search", Code: "503", Count: 40},
		},
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Total Performs:    100",
		"Calls Done:        340",
		"- search: performs=80 (80.0%)",
		"bootstrap failures: 1",
		"search 503: 40",
		"HTTP error response: 2",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Calls Pending") {
		t.Errorf("expected pending calls hidden when zero")
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, field := range []string{"performs", "failures", "agents", "calls_done", "status_buckets", "errors"} {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
	if parsed["performs"].(float64) != 100 {
		t.Errorf("expected performs 100, got %v", parsed["performs"])
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintYAMLReport() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if parsed["performs"] != 100 {
		t.Errorf("expected inline performs 100, got %v", parsed["performs"])
	}
	if parsed["calls_done"] != 340 {
		t.Errorf("expected calls_done 340, got %v", parsed["calls_done"])
	}
}
