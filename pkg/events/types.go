// Package events provides the progress bus: a single-producer fan-out of
// agent and task lifecycle events to in-process subscribers (the persistence
// adapter, the metrics collector, and the WebSocket API layer).
package events

import "time"

// Kind identifies a progress event variant. The strings are stable wire
// identifiers.
type Kind string

const (
	AgentCreated   Kind = "agent_created"
	AgentStarted   Kind = "agent_started"
	AgentThinking  Kind = "agent_thinking"
	AgentToolCall  Kind = "tool_call"
	AgentCompleted Kind = "agent_completed"
	AgentFailed    Kind = "agent_failed"
	AgentDeleted   Kind = "agent_deleted"
	TaskUpdate     Kind = "task_update"
	TaskDeleted    Kind = "task_deleted"
)

// Event is one progress bus message. Data carries the variant payload
// (see payloads.go for the typed constructors).
type Event struct {
	Kind      Kind           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// AgentID extracts the agent id from the payload, if present.
func (e Event) AgentID() string {
	id, _ := e.Data["agent_id"].(string)
	return id
}

// TaskID extracts the task id from the payload, if present.
func (e Event) TaskID() string {
	id, _ := e.Data["task_id"].(string)
	return id
}
