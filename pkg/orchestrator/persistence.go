package orchestrator

import (
	"encoding/json"

	"github.com/agentfleet/maestro/pkg/storage"
)

// AgentRecordSnapshot implements storage.SnapshotSource over the registry.
func (o *Orchestrator) AgentRecordSnapshot(agentID string) (storage.AgentRecord, bool) {
	session, err := o.registry.Get(agentID)
	if err != nil {
		return storage.AgentRecord{}, false
	}

	config := session.Config()
	sessionMetrics := session.Metrics()
	record := storage.AgentRecord{
		AgentID:      session.ID,
		TaskID:       config.TaskID,
		Name:         config.Name,
		Role:         string(config.Role),
		Model:        config.Model,
		Status:       string(session.Status()),
		TotalCostUSD: sessionMetrics.TotalCostUSD,
		TotalTokens:  sessionMetrics.TotalTokens,
		ToolCalls:    sessionMetrics.ToolCalls,
		MessagesSent: sessionMetrics.MessagesSent,
		CreatedAt:    session.CreatedAt(),
	}
	return record, true
}

// TaskRecordSnapshot implements storage.SnapshotSource over the task map.
func (o *Orchestrator) TaskRecordSnapshot(taskID string) (storage.TaskRecord, bool) {
	o.mu.RLock()
	plan, ok := o.tasks[taskID]
	o.mu.RUnlock()
	if !ok {
		return storage.TaskRecord{}, false
	}

	taskType, _ := plan.Metadata["task_type"].(string)
	record := storage.TaskRecord{
		TaskID:         plan.TaskID,
		Description:    plan.Description,
		TaskType:       taskType,
		Status:         string(plan.Status),
		AssignedAgents: append([]string(nil), plan.AssignedAgents...),
		CreatedAt:      plan.CreatedAt,
		CompletedAt:    plan.CompletedAt,
	}
	if plan.Result != nil {
		record.TotalCostUSD = plan.Result.Metrics.TotalCostUSD
		if data, err := json.Marshal(plan.Result); err == nil {
			record.Result = string(data)
		}
	}
	return record, true
}

var _ storage.SnapshotSource = (*Orchestrator)(nil)

// AttachPersistence wires a store-backed adapter onto the progress bus.
func (o *Orchestrator) AttachPersistence(store *storage.Store) {
	adapter := storage.NewAdapter(store, o, o.log)
	adapter.Attach(o.bus)
}
