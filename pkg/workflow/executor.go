package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentfleet/maestro/pkg/agent"
	"github.com/agentfleet/maestro/pkg/events"
	"github.com/agentfleet/maestro/pkg/metrics"
	"github.com/agentfleet/maestro/pkg/models"
)

// Executor materializes a plan's subtasks into live agents and runs them
// under one of three strategies: sequential (distilled context flows from
// each agent to the next), parallel (independent agents, no shared context),
// or dependency DAG (each subtask waits on its prerequisites and receives
// their concatenated forward contexts).
//
// The executor owns agent creation for its plans but defers deletion to
// CleanupWorkflowAgents, so completed agents stay observable until the plan
// is torn down.
type Executor struct {
	registry  *agent.Registry
	bus       *events.Bus
	collector *metrics.Collector
	log       *slog.Logger

	mu       sync.Mutex
	contexts map[string]AgentContext // agent_id → distilled context
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *agent.Registry, bus *events.Bus, collector *metrics.Collector, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		registry:  registry,
		bus:       bus,
		collector: collector,
		log:       log,
		contexts:  make(map[string]AgentContext),
	}
}

// Contexts returns a snapshot of the distilled contexts captured so far,
// keyed by agent id. Higher layers use these for feedback decisions.
func (e *Executor) Contexts() map[string]AgentContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]AgentContext, len(e.contexts))
	for id, c := range e.contexts {
		out[id] = c
	}
	return out
}

// ExecuteSequential runs subtasks in index order. Each agent's prompt is its
// subtask description plus the previous agent's distilled forward context,
// never the previous agent's raw output. A failed subtask clears the context
// so downstream agents see only their own description.
func (e *Executor) ExecuteSequential(ctx context.Context, plan *models.Plan) []models.TaskResult {
	results := make([]models.TaskResult, 0, len(plan.Subtasks))
	var previous *AgentContext

	for i, subtask := range plan.Subtasks {
		session := e.spawn(plan, subtask)

		taskPrompt := subtask.Description
		if previous != nil {
			if forward := previous.ForwardContext(); forward != "" {
				taskPrompt += "\n\n" + forward
			}
		}

		result := session.ExecuteTask(ctx, taskPrompt)
		results = append(results, result)
		e.finishSubtask(session, subtask, result)

		if result.Success && result.Output != "" {
			distilled := Distill(result.Output, subtask.Role)
			e.storeContext(session.ID, distilled)
			previous = &distilled
		} else {
			previous = nil
		}

		e.bus.Publish(events.TaskUpdate,
			events.TaskUpdateData(plan.TaskID, string(models.TaskInProgress), i+1))
	}

	return results
}

// ExecuteParallel creates every agent up front, then runs all subtasks
// concurrently. Subtasks receive only their own descriptions; siblings share
// no context and are never cancelled when one fails. Results are returned in
// subtask-index order regardless of completion order.
func (e *Executor) ExecuteParallel(ctx context.Context, plan *models.Plan) []models.TaskResult {
	sessions := make([]*agent.Session, len(plan.Subtasks))
	for i, subtask := range plan.Subtasks {
		sessions[i] = e.spawn(plan, subtask)
	}

	results := make([]models.TaskResult, len(plan.Subtasks))
	var wg sync.WaitGroup
	for i := range plan.Subtasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subtask := plan.Subtasks[i]
			results[i] = sessions[i].ExecuteTask(ctx, subtask.Description)
			e.finishSubtask(sessions[i], subtask, results[i])
		}(i)
	}
	wg.Wait()

	return results
}

// ExecuteWithDependencies runs subtasks as soon as their prerequisites (the
// union of the deps argument and each subtask's DependsOn) complete. Each
// subtask's prompt receives the concatenated forward contexts of its
// prerequisites in prerequisite-index order. Results return in subtask-index
// order.
func (e *Executor) ExecuteWithDependencies(ctx context.Context, plan *models.Plan, deps map[int][]int) []models.TaskResult {
	n := len(plan.Subtasks)
	results := make([]models.TaskResult, n)
	indexContexts := make([]*AgentContext, n)
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}

	prereqs := func(i int) []int {
		merged := append([]int(nil), plan.Subtasks[i].DependsOn...)
		for _, d := range deps[i] {
			seen := false
			for _, existing := range merged {
				if existing == d {
					seen = true
					break
				}
			}
			if !seen {
				merged = append(merged, d)
			}
		}
		return merged
	}

	// Agents are created inside each goroutine, after prerequisites settle,
	// so a long prerequisite chain doesn't hold idle agents open.
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer close(done[i])

			indices := prereqs(i)
			for _, dep := range indices {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return
				}
			}

			var depContexts []string
			mu.Lock()
			for _, dep := range indices {
				if c := indexContexts[dep]; c != nil {
					if forward := c.ForwardContext(); forward != "" {
						depContexts = append(depContexts, forward)
					}
				}
			}
			mu.Unlock()

			subtask := plan.Subtasks[i]
			session := e.spawn(plan, subtask)

			taskPrompt := subtask.Description
			if len(depContexts) > 0 {
				taskPrompt += "\n\nContext from previous tasks:\n" + strings.Join(depContexts, "\n\n")
			}

			result := session.ExecuteTask(ctx, taskPrompt)
			e.finishSubtask(session, subtask, result)

			mu.Lock()
			results[i] = result
			if result.Success && result.Output != "" {
				distilled := Distill(result.Output, subtask.Role)
				indexContexts[i] = &distilled
				e.storeContext(session.ID, distilled)
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	return results
}

// CleanupWorkflowAgents deletes every agent assigned to the plan and returns
// the count successfully deleted. Callers invoke this on every Execute*
// return path, success or not.
func (e *Executor) CleanupWorkflowAgents(plan *models.Plan) int {
	count := 0
	for _, agentID := range plan.AssignedAgents {
		if e.registry.Delete(agentID) {
			count++
		}
	}
	plan.AssignedAgents = nil
	return count
}

// spawn creates a specialized agent for a subtask, records the assignment on
// the plan, and wires the session's progress callback onto the bus.
func (e *Executor) spawn(plan *models.Plan, subtask models.Subtask) *agent.Session {
	session := e.registry.CreateSpecialized(subtask.Role, subtask.Context, subtask.Constraints, plan.TaskID)

	e.mu.Lock()
	plan.AssignedAgents = append(plan.AssignedAgents, session.ID)
	e.mu.Unlock()

	agentID := session.ID
	taskID := plan.TaskID
	session.SetProgressFunc(func(event, data string) {
		switch event {
		case agent.ProgressStarted:
			e.bus.Publish(events.AgentStarted, events.AgentLifecycleData(agentID, taskID))
		case agent.ProgressThinking:
			e.bus.Publish(events.AgentThinking, events.AgentLifecycleData(agentID, taskID))
		case agent.ProgressToolCall:
			e.bus.Publish(events.AgentToolCall, events.ToolCallData(agentID, taskID, data))
		case agent.ProgressCompleted:
			e.bus.Publish(events.AgentCompleted,
				events.AgentCompletedData(agentID, taskID, session.Metrics().TotalCostUSD))
		case agent.ProgressFailed:
			e.bus.Publish(events.AgentFailed, events.AgentFailedData(agentID, taskID, data))
		}
	})

	return session
}

// finishSubtask records completion-side bookkeeping shared by all modes.
func (e *Executor) finishSubtask(session *agent.Session, subtask models.Subtask, result models.TaskResult) {
	e.collector.RecordAgentMetrics(session.Metrics())
	if result.Success {
		e.log.Info("Subtask completed",
			"agent_id", session.ID,
			"role", subtask.Role,
			"cost_usd", result.Metrics.TotalCostUSD,
			"tokens", result.Metrics.TotalTokens)
	} else {
		e.log.Error("Subtask failed",
			"agent_id", session.ID,
			"role", subtask.Role,
			"error", result.Error)
		e.collector.RecordEvent("error", map[string]any{
			"agent_id": session.ID, "error": result.Error,
		})
	}
}

func (e *Executor) storeContext(agentID string, distilled AgentContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contexts[agentID] = distilled
}
