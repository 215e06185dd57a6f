package orchestrator

import (
	"time"

	"github.com/agentfleet/maestro/pkg/agent"
	"github.com/agentfleet/maestro/pkg/models"
)

// agentListAll matches every registered session.
var agentListAll = agent.ListFilter{}

// contextWarnThreshold is the context-window usage percentage above which
// the monitor logs a warning for a session.
const contextWarnThreshold = 80.0

// runMonitor snapshots fleet metrics on every tick and warns about sessions
// approaching the context window limit. The loop observes the shutdown flag
// within at most one tick.
func (o *Orchestrator) runMonitor() {
	defer o.monitorDone.Done()

	ticker := time.NewTicker(o.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.monitorStop:
			return
		case <-ticker.C:
			o.monitorTick()
		}
	}
}

func (o *Orchestrator) monitorTick() {
	for _, session := range o.registry.List(agentListAll) {
		if session.Status() == models.StatusDeleted {
			continue
		}

		o.collector.RecordAgentMetrics(session.Metrics())

		usage := session.ContextUsage()
		if usage.UsagePercentage > contextWarnThreshold {
			o.log.Warn("High context usage",
				"agent_id", session.ID,
				"name", session.Config().Name,
				"usage_percentage", usage.UsagePercentage)
		}
	}
}
