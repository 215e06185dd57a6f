// Package orchestrator wires the planner, executor, registry, metrics, and
// progress bus into the public entry point for multi-agent task execution.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentfleet/maestro/pkg/agent"
	"github.com/agentfleet/maestro/pkg/agent/prompt"
	"github.com/agentfleet/maestro/pkg/events"
	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/agentfleet/maestro/pkg/metrics"
	"github.com/agentfleet/maestro/pkg/models"
	"github.com/agentfleet/maestro/pkg/workflow"

	"github.com/google/uuid"
)

// PlannerMode selects how Execute builds plans for explicit task types.
type PlannerMode string

const (
	// PlannerTemplate uses the deterministic template catalog.
	PlannerTemplate PlannerMode = "template"
	// PlannerDelegating asks a workflow-planner agent, with template fallback.
	PlannerDelegating PlannerMode = "ai"
)

// Options configures an Orchestrator.
type Options struct {
	WorkingDirectory string
	Model            string
	LogDir           string
	LoggingEnabled   bool
	PlannerMode      PlannerMode
	EnableMonitoring bool
	// MonitorInterval is the fleet monitoring tick (default 15s).
	MonitorInterval time.Duration
}

// Orchestrator is the unified interface for multi-agent control: it plans
// tasks, runs them through the executor, aggregates results, and tears the
// task's agents down afterwards.
type Orchestrator struct {
	registry   *agent.Registry
	planner    *workflow.Planner
	delegating *workflow.DelegatingPlanner
	executor   *workflow.Executor
	bus        *events.Bus
	collector  *metrics.Collector
	opts       Options
	log        *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*models.Plan

	monitorStop chan struct{}
	monitorDone sync.WaitGroup
}

// New assembles an orchestrator over the given inference client.
func New(client llm.Client, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 15 * time.Second
	}
	if opts.PlannerMode == "" {
		opts.PlannerMode = PlannerTemplate
	}

	bus := events.NewBus(log)
	collector := metrics.NewCollector()
	registry := agent.NewRegistry(client, bus, collector, agent.RegistryOptions{
		WorkingDirectory: opts.WorkingDirectory,
		Model:            opts.Model,
		LogDir:           opts.LogDir,
		LoggingEnabled:   opts.LoggingEnabled,
	}, log)
	planner := workflow.NewPlanner()

	o := &Orchestrator{
		registry:   registry,
		planner:    planner,
		delegating: workflow.NewDelegatingPlanner(registry, planner, log),
		executor:   workflow.NewExecutor(registry, bus, collector, log),
		bus:        bus,
		collector:  collector,
		opts:       opts,
		log:        log,
		tasks:      make(map[string]*models.Plan),
	}

	log.Info("Orchestrator initialized", "planner_mode", opts.PlannerMode)
	return o
}

// Bus exposes the progress bus for subscribers (persistence, API adapter).
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// Registry exposes the agent registry for read access.
func (o *Orchestrator) Registry() *agent.Registry { return o.registry }

// Collector exposes the metrics collector.
func (o *Orchestrator) Collector() *metrics.Collector { return o.collector }

// Start launches the fleet monitoring loop when monitoring is enabled.
func (o *Orchestrator) Start() {
	if !o.opts.EnableMonitoring || o.monitorStop != nil {
		return
	}
	o.monitorStop = make(chan struct{})
	o.monitorDone.Add(1)
	go o.runMonitor()
	o.log.Info("Monitoring started", "interval", o.opts.MonitorInterval)
}

// Stop halts monitoring (waiting at most one tick for the loop to observe
// the shutdown flag) and deletes every agent. In-flight sessions are not
// interrupted; their resources are cleared on deletion.
func (o *Orchestrator) Stop() {
	if o.monitorStop != nil {
		close(o.monitorStop)
		o.monitorDone.Wait()
		o.monitorStop = nil
		o.log.Info("Monitoring stopped")
	}

	deleted := o.registry.DeleteAll()
	o.log.Info("Orchestrator stopped", "agents_deleted", deleted)
}

// Execute plans and runs a high-level task, returning the aggregated result.
// Per-agent failures surface through the aggregated result's Success and
// Error fields; only plan construction failures return an error.
func (o *Orchestrator) Execute(ctx context.Context, taskPrompt, taskType, executionMode string) (models.TaskResult, error) {
	_, plan, err := o.planTask(ctx, taskPrompt, taskType, executionMode)
	if err != nil {
		return models.TaskResult{}, err
	}
	return o.runPlan(ctx, plan, executionMode), nil
}

// Submit plans a task synchronously (so validation failures surface to the
// caller) and runs it in the background. The aggregated result is delivered
// on the returned channel.
func (o *Orchestrator) Submit(ctx context.Context, taskPrompt, taskType, executionMode string) (string, <-chan models.TaskResult, error) {
	taskID, plan, err := o.planTask(ctx, taskPrompt, taskType, executionMode)
	if err != nil {
		return "", nil, err
	}

	done := make(chan models.TaskResult, 1)
	go func() {
		done <- o.runPlan(ctx, plan, executionMode)
		close(done)
	}()
	return taskID, done, nil
}

func (o *Orchestrator) planTask(ctx context.Context, taskPrompt, taskType, executionMode string) (string, *models.Plan, error) {
	taskID := uuid.New().String()
	o.log.Info("Task started", "task_id", taskID, "task_type", taskType, "mode", executionMode)

	plan, err := o.buildPlan(ctx, taskID, taskPrompt, taskType)
	if err != nil {
		return "", nil, fmt.Errorf("plan construction failed: %w", err)
	}

	o.mu.Lock()
	o.tasks[taskID] = plan
	o.mu.Unlock()

	plan.Status = models.TaskInProgress
	o.log.Info("Task planned", "task_id", taskID, "subtasks", len(plan.Subtasks))
	o.bus.Publish(events.TaskUpdate, events.TaskUpdateData(taskID, string(models.TaskInProgress), 0))

	return taskID, plan, nil
}

func (o *Orchestrator) runPlan(ctx context.Context, plan *models.Plan, executionMode string) models.TaskResult {
	defer func() {
		deleted := o.executor.CleanupWorkflowAgents(plan)
		o.log.Info("Workflow cleanup", "task_id", plan.TaskID, "agents_deleted", deleted)
	}()

	var results []models.TaskResult
	switch {
	case executionMode == string(models.ModeParallel):
		results = o.executor.ExecuteParallel(ctx, plan)
	case planHasDependencies(plan):
		results = o.executor.ExecuteWithDependencies(ctx, plan, nil)
	default:
		results = o.executor.ExecuteSequential(ctx, plan)
	}

	aggregated := models.AggregateResults(results)

	now := time.Now().UTC()
	plan.CompletedAt = &now
	plan.Result = &aggregated
	if aggregated.Success {
		plan.Status = models.TaskCompleted
		o.log.Info("Task completed", "task_id", plan.TaskID, "total_cost_usd", aggregated.Metrics.TotalCostUSD)
	} else {
		plan.Status = models.TaskFailed
		o.log.Error("Task failed", "task_id", plan.TaskID, "error", aggregated.Error)
	}
	o.bus.Publish(events.TaskUpdate, events.TaskUpdateData(plan.TaskID, string(plan.Status), len(plan.Subtasks)))

	return aggregated
}

// ExecuteCustomWorkflow runs an ad hoc role list against a prompt without a
// template, sequentially by default or in parallel.
func (o *Orchestrator) ExecuteCustomWorkflow(ctx context.Context, taskPrompt string, roles []models.AgentRole, parallel bool) ([]models.TaskResult, error) {
	taskID := uuid.New().String()

	plan, err := o.planner.PlanParallel(taskID, taskPrompt, roles)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.tasks[taskID] = plan
	o.mu.Unlock()
	plan.Status = models.TaskInProgress

	defer o.executor.CleanupWorkflowAgents(plan)

	if parallel {
		return o.executor.ExecuteParallel(ctx, plan), nil
	}
	return o.executor.ExecuteSequential(ctx, plan), nil
}

// Contexts exposes the distilled per-agent contexts captured by the
// executor, for higher layers acting on requires_fix flags.
func (o *Orchestrator) Contexts() map[string]workflow.AgentContext {
	return o.executor.Contexts()
}

func (o *Orchestrator) buildPlan(ctx context.Context, taskID, taskPrompt, taskType string) (*models.Plan, error) {
	if taskType == workflow.TypeAuto {
		complexity := o.planner.EstimateComplexity(taskPrompt)
		return o.planner.PlanParallel(taskID, taskPrompt, complexity.SuggestedRoles)
	}
	if o.opts.PlannerMode == PlannerDelegating {
		return o.delegating.PlanTask(ctx, taskID, taskPrompt, taskType)
	}
	return o.planner.PlanTask(taskID, taskPrompt, taskType)
}

func planHasDependencies(plan *models.Plan) bool {
	for _, st := range plan.Subtasks {
		if len(st.DependsOn) > 0 {
			return true
		}
	}
	return false
}

// --- Status and read APIs (snapshots; never mutate) ---

// GetStatus reports the fleet, metrics, task counts, and monitoring state.
func (o *Orchestrator) GetStatus() map[string]any {
	o.mu.RLock()
	total := len(o.tasks)
	active := 0
	for _, plan := range o.tasks {
		if plan.CompletedAt == nil {
			active++
		}
	}
	o.mu.RUnlock()

	return map[string]any{
		"fleet":   o.registry.FleetSummary(),
		"metrics": o.collector.GetSummary(),
		"tasks": map[string]any{
			"total":  total,
			"active": active,
		},
		"monitoring": map[string]any{
			"enabled":   o.opts.EnableMonitoring,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"files":     o.collector.FilesConsumedAndProduced(),
		},
	}
}

// GetTask returns the status snapshot of one task, or nil if unknown.
func (o *Orchestrator) GetTask(taskID string) map[string]any {
	o.mu.RLock()
	plan, ok := o.tasks[taskID]
	o.mu.RUnlock()
	if !ok {
		return nil
	}

	out := map[string]any{
		"task_id":         plan.TaskID,
		"description":     plan.Description,
		"status":          string(plan.Status),
		"subtasks":        len(plan.Subtasks),
		"assigned_agents": append([]string(nil), plan.AssignedAgents...),
		"created_at":      plan.CreatedAt.Format(time.RFC3339Nano),
		"metadata":        plan.Metadata,
	}
	if plan.CompletedAt != nil {
		out["completed_at"] = plan.CompletedAt.Format(time.RFC3339Nano)
	}
	if plan.Result != nil {
		out["result"] = *plan.Result
	}
	return out
}

// ListTasks returns snapshots of every known task.
func (o *Orchestrator) ListTasks() []map[string]any {
	o.mu.RLock()
	ids := make([]string, 0, len(o.tasks))
	for id := range o.tasks {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if snapshot := o.GetTask(id); snapshot != nil {
			out = append(out, snapshot)
		}
	}
	return out
}

// ListAgents returns summaries of all active agents.
func (o *Orchestrator) ListAgents() []map[string]any {
	sessions := o.registry.GetActive()
	out := make([]map[string]any, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Summary())
	}
	return out
}

// GetAgentDetails returns one agent's summary, or nil if unknown.
func (o *Orchestrator) GetAgentDetails(agentID string) map[string]any {
	session, err := o.registry.Get(agentID)
	if err != nil {
		return nil
	}
	return session.Summary()
}

// --- Manual agent control (bypasses the planner) ---

// CreateAgent creates an agent directly. With a name and system prompt it is
// a custom agent; otherwise the role's specialized prompt is used.
func (o *Orchestrator) CreateAgent(role models.AgentRole, name, systemPrompt string) string {
	if name != "" && systemPrompt != "" {
		session := o.registry.Create(models.AgentConfig{
			Name:         name,
			Role:         role,
			SystemPrompt: systemPrompt,
		})
		return session.ID
	}
	session := o.registry.CreateSpecialized(role, "", nil, "")
	return session.ID
}

// SendToAgent sends a continuation message to a specific agent.
func (o *Orchestrator) SendToAgent(ctx context.Context, agentID, message string) (string, error) {
	session, err := o.registry.Get(agentID)
	if err != nil {
		return "", err
	}
	response, err := session.SendMessage(ctx, message)
	if err != nil {
		return "", err
	}
	o.collector.RecordAgentMetrics(session.Metrics())
	return response, nil
}

// DeleteAgent deletes an agent directly.
func (o *Orchestrator) DeleteAgent(agentID string) bool {
	return o.registry.Delete(agentID)
}

// SystemPromptFor exposes the role prompt catalog, with modifiers applied
// from the task description and complexity.
func SystemPromptFor(role models.AgentRole, taskDescription, complexity string) string {
	base := prompt.RolePrompt(role)
	if modifier := prompt.TaskModifier(taskDescription); modifier != "" {
		base += modifier
	}
	if complexity != "" {
		base += prompt.ComplexityModifier(complexity)
	}
	return base
}
