package metrics

import "sort"

// StatusBucket is the number of calls of one agent that ended with one
// outcome code.
type StatusBucket struct {
	Agent string `json:"agent" yaml:"agent"`
	Code  string `json:"code" yaml:"code"`
	Count int64  `json:"count" yaml:"count"`
}

// FlattenStatusBuckets converts a nested agent->code map into a sorted slice of StatusBucket rows.
// Rows are sorted by descending count, then by agent/code for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int64) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for agent, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Agent: agent, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Agent == rows[j].Agent {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Agent < rows[j].Agent
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
