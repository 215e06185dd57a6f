package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskResult is the outcome of one agent's task execution. Failures are
// reported through Success and Error, never as a propagated transport error.
type TaskResult struct {
	AgentID         string       `json:"agent_id"`
	TaskDescription string       `json:"task_description"`
	Success         bool         `json:"success"`
	Output          string       `json:"output"`
	Error           string       `json:"error,omitempty"`
	Metrics         AgentMetrics `json:"metrics"`
	Artifacts       []string     `json:"artifacts"`
	Timestamp       time.Time    `json:"timestamp"`
}

// AggregateResults folds per-subtask results into a single orchestrator-level
// result: outputs are concatenated with agent-id prefixes, artifacts are
// unioned in order of first appearance, and metrics are summed component-wise.
// Success is true iff every subtask succeeded; Error carries the first
// failing subtask's error.
func AggregateResults(results []TaskResult) TaskResult {
	aggregated := TaskResult{
		AgentID:         "orchestrator",
		TaskDescription: "Aggregated workflow results",
		Success:         true,
		Metrics:         NewAgentMetrics("orchestrator"),
		Timestamp:       time.Now().UTC(),
	}

	var outputs []string
	for _, result := range results {
		if !result.Success {
			aggregated.Success = false
			if aggregated.Error == "" {
				aggregated.Error = fmt.Sprintf("agent %s: %s", result.AgentID, result.Error)
			}
		}
		if result.Output != "" {
			outputs = append(outputs, fmt.Sprintf("[%s]: %s", result.AgentID, result.Output))
		}
		for _, artifact := range result.Artifacts {
			aggregated.Artifacts = appendUnique(aggregated.Artifacts, artifact)
		}
		aggregated.Metrics.Add(result.Metrics)
	}
	aggregated.Output = strings.Join(outputs, "\n\n")

	return aggregated
}
