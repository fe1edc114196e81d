// Package metrics collects perform latencies and execution failures per agent.
//
// The [Collector] is shared by every execution:
//
//	collector := metrics.NewCollector()
//	collector.RecordPerform("search", latency)
//	collector.RecordFailure("search", metrics.PhasePerform, err)
//
//	stats := collector.Stats(collector.Elapsed())
//
// Latency percentiles come from an HDR histogram tracking 1µs to 60s with
// three significant figures. The Collector is safe for concurrent use.
package metrics
