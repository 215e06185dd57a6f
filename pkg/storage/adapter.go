package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentfleet/maestro/pkg/events"
)

// writeTimeout bounds each upsert so a stalled database never blocks the
// adapter's event loop for long.
const writeTimeout = 5 * time.Second

// SnapshotSource provides current-state snapshots for records the adapter
// persists. Implemented by the orchestrator facade.
type SnapshotSource interface {
	AgentRecordSnapshot(agentID string) (AgentRecord, bool)
	TaskRecordSnapshot(taskID string) (TaskRecord, bool)
}

// Adapter subscribes to the progress bus and mirrors every agent and task
// transition into the store. Writes for one record are serialized by the
// single subscriber goroutine; write failures are logged and swallowed so
// the producer is never blocked.
type Adapter struct {
	store  *Store
	source SnapshotSource
	log    *slog.Logger
}

// NewAdapter creates a persistence adapter.
func NewAdapter(store *Store, source SnapshotSource, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{store: store, source: source, log: log}
}

// Attach registers the adapter on the bus. The returned error is always nil
// from the callback so the adapter is never dropped for a failed write.
func (a *Adapter) Attach(bus *events.Bus) {
	bus.SubscribeFunc("persistence", func(event events.Event) error {
		a.handle(event)
		return nil
	})
}

func (a *Adapter) handle(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch event.Kind {
	case events.AgentDeleted:
		agentID := event.AgentID()
		if record, ok := a.source.AgentRecordSnapshot(agentID); ok {
			now := event.Timestamp
			record.Status = "deleted"
			record.DeletedAt = &now
			a.upsertAgent(ctx, record)
			return
		}
		if err := a.store.MarkAgentDeleted(ctx, agentID, event.Timestamp); err != nil {
			a.log.Warn("Persistence write failed", "event", event.Kind, "agent_id", agentID, "error", err)
		}

	case events.AgentCreated, events.AgentStarted, events.AgentCompleted, events.AgentFailed:
		if record, ok := a.source.AgentRecordSnapshot(event.AgentID()); ok {
			a.upsertAgent(ctx, record)
		}

	case events.TaskUpdate, events.TaskDeleted:
		// Agent status changes arrive as task updates carrying an agent_id;
		// refresh that agent's record alongside the task's.
		if agentID := event.AgentID(); agentID != "" {
			if record, ok := a.source.AgentRecordSnapshot(agentID); ok {
				a.upsertAgent(ctx, record)
			}
		}
		if record, ok := a.source.TaskRecordSnapshot(event.TaskID()); ok {
			if step, ok := event.Data["current_step"].(int); ok {
				record.CurrentStep = step
			}
			if err := a.store.UpsertTask(ctx, record); err != nil {
				a.log.Warn("Persistence write failed", "event", event.Kind, "task_id", record.TaskID, "error", err)
			}
		}
	}
}

func (a *Adapter) upsertAgent(ctx context.Context, record AgentRecord) {
	if err := a.store.UpsertAgent(ctx, record); err != nil {
		a.log.Warn("Persistence write failed", "agent_id", record.AgentID, "error", err)
	}
}
