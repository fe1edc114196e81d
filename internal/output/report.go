package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/torosent/sagent/internal/metrics"
)

// Report is the end-of-run summary.
type Report struct {
	metrics.Stats `yaml:",inline"`

	CallsDone     int64                  `json:"calls_done" yaml:"calls_done"`
	CallsPending  int64                  `json:"calls_pending" yaml:"calls_pending"`
	StatusBuckets []metrics.StatusBucket `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- Agent Run Results ---")
	fmt.Fprintf(w, "Total Performs:    %d\n", r.Performs)
	fmt.Fprintf(w, "Failed Executions: %d\n", r.Failures)
	fmt.Fprintf(w, "Calls Done:        %d\n", r.CallsDone)
	if r.CallsPending > 0 {
		fmt.Fprintf(w, "Calls Pending:     %d\n", r.CallsPending)
	}
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration)
	fmt.Fprintf(w, "Performs/sec:      %.2f\n", r.PerformsPerSec)
	fmt.Fprintln(w, "\nPerform Latency:")
	writeLatency(w, r.Latency, "  ")

	if len(r.Agents) > 0 {
		fmt.Fprintln(w, "\nAgent Breakdown:")
		for _, agent := range r.Agents {
			share := 0.0
			if r.Performs > 0 {
				share = (float64(agent.Performs) / float64(r.Performs)) * 100
			}
			fmt.Fprintf(
				w,
				"  - %s: performs=%d (%.1f%%), failures=%d, p50=%s, p99=%s\n",
				agent.Name,
				agent.Performs,
				share,
				agent.Failures,
				agent.Latency.P50,
				agent.Latency.P99,
			)
			if len(agent.FailuresByPhase) > 0 {
				phases := make([]string, 0, len(agent.FailuresByPhase))
				for phase := range agent.FailuresByPhase {
					phases = append(phases, phase)
				}
				sort.Strings(phases)
				for _, phase := range phases {
					fmt.Fprintf(w, "      %s failures: %d\n", phase, agent.FailuresByPhase[phase])
				}
			}
		}
	}

	if len(r.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		for _, row := range r.StatusBuckets {
			fmt.Fprintf(w, "  %s %s: %d\n", row.Agent, row.Code, row.Count)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, kind := range metrics.SortedErrorTypes(r.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(kind), r.Errors[kind])
		}
	}
}

func writeLatency(w io.Writer, l metrics.LatencyStats, indent string) {
	fmt.Fprintf(w, "%sMin:             %s\n", indent, l.Min)
	fmt.Fprintf(w, "%sMax:             %s\n", indent, l.Max)
	fmt.Fprintf(w, "%sMean:            %s\n", indent, l.Mean)
	fmt.Fprintf(w, "%sP50:             %s\n", indent, l.P50)
	fmt.Fprintf(w, "%sP90:             %s\n", indent, l.P90)
	fmt.Fprintf(w, "%sP99:             %s\n", indent, l.P99)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
