package events

import "encoding/json"

// Typed payload constructors. Keeping payload shapes in one place pins the
// wire contract consumed by the API adapter and the persistence adapter.

// AgentCreatedData is the payload for AgentCreated events.
func AgentCreatedData(agentID, name, role, taskID string) map[string]any {
	return map[string]any{
		"agent_id": agentID,
		"name":     name,
		"role":     role,
		"task_id":  taskID,
	}
}

// AgentLifecycleData is the payload for started/thinking events.
func AgentLifecycleData(agentID, taskID string) map[string]any {
	return map[string]any{
		"agent_id": agentID,
		"task_id":  taskID,
	}
}

// ToolCallData is the payload for AgentToolCall events.
func ToolCallData(agentID, taskID, toolName string) map[string]any {
	return map[string]any{
		"agent_id":  agentID,
		"task_id":   taskID,
		"tool_name": toolName,
	}
}

// AgentCompletedData is the payload for AgentCompleted events.
func AgentCompletedData(agentID, taskID string, costUSD float64) map[string]any {
	return map[string]any{
		"agent_id":       agentID,
		"task_id":        taskID,
		"total_cost_usd": costUSD,
	}
}

// AgentFailedData is the payload for AgentFailed events.
func AgentFailedData(agentID, taskID, errMsg string) map[string]any {
	return map[string]any{
		"agent_id": agentID,
		"task_id":  taskID,
		"error":    errMsg,
	}
}

// StatusChangeData is the payload for agent status-change task updates.
func StatusChangeData(agentID, taskID, oldStatus, newStatus string) map[string]any {
	return map[string]any{
		"agent_id":   agentID,
		"task_id":    taskID,
		"old_status": oldStatus,
		"new_status": newStatus,
	}
}

// TaskUpdateData is the payload for TaskUpdate events.
func TaskUpdateData(taskID, status string, currentStep int) map[string]any {
	return map[string]any{
		"task_id":      taskID,
		"status":       status,
		"current_step": currentStep,
	}
}

// TaskDeletedData is the payload for TaskDeleted events.
func TaskDeletedData(taskID string) map[string]any {
	return map[string]any{"task_id": taskID}
}

// WireMessage is the JSON envelope sent to external subscribers:
// {"type": "<event-kind>", "data": {...}}.
type WireMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// wireKind maps internal event kinds to the adapter's coarser wire events.
var wireKind = map[Kind]string{
	AgentCreated:   "agent_update",
	AgentStarted:   "agent_update",
	AgentThinking:  "agent_update",
	AgentToolCall:  "agent_update",
	AgentCompleted: "agent_update",
	AgentFailed:    "agent_update",
	AgentDeleted:   "agent_deleted",
	TaskUpdate:     "task_update",
	TaskDeleted:    "task_deleted",
}

// MarshalWire converts an event into the adapter wire format. The internal
// kind is preserved inside data as "event".
func MarshalWire(e Event) ([]byte, error) {
	data := make(map[string]any, len(e.Data)+2)
	for k, v := range e.Data {
		data[k] = v
	}
	data["event"] = string(e.Kind)
	data["timestamp"] = e.Timestamp

	kind, ok := wireKind[e.Kind]
	if !ok {
		kind = string(e.Kind)
	}
	return json.Marshal(WireMessage{Type: kind, Data: data})
}
