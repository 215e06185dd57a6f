package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentfleet/maestro/pkg/agent"
	"github.com/agentfleet/maestro/pkg/agent/prompt"
	"github.com/agentfleet/maestro/pkg/models"
)

// plannerResponse is the strict JSON contract the workflow-planner agent
// must honor: a bare object, no Markdown fences, no prose wrapper.
type plannerResponse struct {
	Complexity         string            `json:"complexity"`
	Rationale          string            `json:"rationale"`
	Workflow           []plannerWorkflow `json:"workflow"`
	TotalEstimatedCost float64           `json:"total_estimated_cost"`
	SkipReasoning      string            `json:"skip_reasoning"`
}

type plannerWorkflow struct {
	AgentRole       string   `json:"agent_role"`
	Scope           string   `json:"scope"`
	Constraints     []string `json:"constraints"`
	EstimatedTokens int      `json:"estimated_tokens"`
	ExecutionMode   string   `json:"execution_mode"`
	DependsOn       []int    `json:"depends_on"`
}

// DelegatingPlanner asks a one-shot workflow-planner agent for a structured
// plan and falls back to the template planner whenever the response does not
// satisfy the JSON contract. Cost estimates in the response never gate plan
// acceptance.
type DelegatingPlanner struct {
	registry *agent.Registry
	fallback *Planner
	log      *slog.Logger
}

// NewDelegatingPlanner creates a delegating planner over the given registry.
func NewDelegatingPlanner(registry *agent.Registry, fallback *Planner, log *slog.Logger) *DelegatingPlanner {
	if log == nil {
		log = slog.Default()
	}
	return &DelegatingPlanner{registry: registry, fallback: fallback, log: log}
}

// PlanTask spawns the planner agent with the task description as its only
// message, parses the JSON reply into a plan, and deletes the agent. On any
// contract violation the template planner takes over and the fallback reason
// is recorded in the plan metadata.
func (d *DelegatingPlanner) PlanTask(ctx context.Context, taskID, description, taskType string) (*models.Plan, error) {
	session := d.registry.Create(models.AgentConfig{
		Name:         "Workflow Planner",
		Role:         models.RolePlanner,
		SystemPrompt: prompt.WorkflowPlannerPrompt,
		TaskID:       taskID,
	})
	result := session.ExecuteTask(ctx, description)
	d.registry.Delete(session.ID)

	plan, err := d.buildPlan(taskID, description, result)
	if err != nil {
		d.log.Warn("Planner agent response rejected, falling back to template planner",
			"task_id", taskID, "error", err)
		fallbackPlan, fbErr := d.fallback.PlanTask(taskID, description, taskType)
		if fbErr != nil {
			return nil, fbErr
		}
		fallbackPlan.Metadata["planner_fallback"] = err.Error()
		return fallbackPlan, nil
	}
	return plan, nil
}

func (d *DelegatingPlanner) buildPlan(taskID, description string, result models.TaskResult) (*models.Plan, error) {
	if !result.Success {
		return nil, fmt.Errorf("planner agent failed: %s", result.Error)
	}

	var resp plannerResponse
	decoder := json.NewDecoder(strings.NewReader(result.Output))
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("planner response is not valid JSON: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("planner response has trailing content after the JSON object")
	}
	if resp.Complexity == "" {
		return nil, fmt.Errorf("planner response missing complexity")
	}
	if len(resp.Workflow) == 0 {
		return nil, fmt.Errorf("planner response has empty workflow")
	}

	plan := models.NewPlan(taskID, description)
	plan.Metadata["planner"] = "delegating"
	plan.Metadata["complexity"] = resp.Complexity
	plan.Metadata["rationale"] = resp.Rationale
	plan.Metadata["total_estimated_cost"] = resp.TotalEstimatedCost
	if resp.SkipReasoning != "" {
		plan.Metadata["skip_reasoning"] = resp.SkipReasoning
	}

	for i, entry := range resp.Workflow {
		role, err := models.ParseRole(entry.AgentRole)
		if err != nil {
			return nil, fmt.Errorf("workflow entry %d: %w", i, err)
		}
		if entry.Scope == "" {
			return nil, fmt.Errorf("workflow entry %d missing scope", i)
		}
		mode := models.ExecutionMode(entry.ExecutionMode)
		if mode != models.ModeParallel {
			mode = models.ModeSequential
		}
		plan.Subtasks = append(plan.Subtasks, models.Subtask{
			Role:            role,
			Description:     entry.Scope,
			Constraints:     entry.Constraints,
			ExecutionMode:   mode,
			DependsOn:       entry.DependsOn,
			EstimatedTokens: entry.EstimatedTokens,
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}
