package models

import (
	"fmt"
	"time"
)

// ExecutionMode selects how a subtask (or a whole plan) is scheduled.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// Subtask is one unit of work in a plan, bound to a role and scope.
// DependsOn holds indices of prerequisite subtasks; by construction every
// index is smaller than the subtask's own position, keeping plans acyclic.
type Subtask struct {
	Role            AgentRole     `json:"role"`
	Description     string        `json:"description"`
	Context         string        `json:"context,omitempty"`
	Constraints     []string      `json:"constraints,omitempty"`
	ExecutionMode   ExecutionMode `json:"execution_mode"`
	DependsOn       []int         `json:"depends_on,omitempty"`
	EstimatedTokens int           `json:"estimated_tokens,omitempty"`
}

// Plan is the ordered (or DAG-structured) decomposition of a task.
// AssignedAgents collects the ids of agents spawned for the plan so the
// executor can delete them during cleanup.
type Plan struct {
	TaskID         string         `json:"task_id"`
	Description    string         `json:"description"`
	Subtasks       []Subtask      `json:"subtasks"`
	AssignedAgents []string       `json:"assigned_agents"`
	Status         TaskStatus     `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Result         *TaskResult    `json:"result,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewPlan creates an empty pending plan for the given task.
func NewPlan(taskID, description string) *Plan {
	return &Plan{
		TaskID:      taskID,
		Description: description,
		Status:      TaskPending,
		CreatedAt:   time.Now().UTC(),
		Metadata:    map[string]any{},
	}
}

// Validate checks structural invariants: non-empty subtask descriptions,
// known roles, and dependency indices strictly below each subtask's own
// index (acyclic by construction).
func (p *Plan) Validate() error {
	if len(p.Subtasks) == 0 {
		return fmt.Errorf("plan %s has no subtasks", p.TaskID)
	}
	for i, st := range p.Subtasks {
		if st.Description == "" {
			return fmt.Errorf("subtask %d has no description", i)
		}
		if _, err := ParseRole(string(st.Role)); err != nil {
			return fmt.Errorf("subtask %d: %w", i, err)
		}
		for _, dep := range st.DependsOn {
			if dep < 0 || dep >= i {
				return fmt.Errorf("subtask %d depends on %d: dependencies must reference earlier subtasks", i, dep)
			}
		}
	}
	return nil
}
