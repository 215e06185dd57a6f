package models

import "time"

// ToolCall records one tool invocation observed on an agent's stream.
// Result stays nil until the matching tool-result block arrives; matching is
// LIFO over unresolved calls.
type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
