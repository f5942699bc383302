package dag

import (
	"sort"
	"time"
)

// Result holds the outcome of a pipeline run.
type Result struct {
	RunID       string
	NodeResults map[string]NodeResult
	Duration    time.Duration
}

// NodeResult holds the outcome of a single component.
type NodeResult struct {
	Instance string
	Class    string
	Status   string // "completed" | "failed"
	Duration time.Duration
	Error    error
}

// Failed returns the failed components sorted by instance name.
func (r *Result) Failed() []NodeResult {
	var out []NodeResult
	for _, nr := range r.NodeResults {
		if nr.Error != nil {
			out = append(out, nr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}
