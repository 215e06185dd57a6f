package workflow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/agentfleet/maestro/pkg/agent"
	"github.com/agentfleet/maestro/pkg/events"
	"github.com/agentfleet/maestro/pkg/llm/llmtest"
	"github.com/agentfleet/maestro/pkg/metrics"
	"github.com/agentfleet/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, turns ...llmtest.Turn) (*agent.Registry, *llmtest.ScriptedClient) {
	t.Helper()
	client := llmtest.NewScriptedClient(turns...)
	bus := events.NewBus(slog.Default())
	t.Cleanup(bus.Close)
	registry := agent.NewRegistry(client, bus, metrics.NewCollector(), agent.RegistryOptions{}, slog.Default())
	return registry, client
}

const validPlannerJSON = `{
  "complexity": "medium",
  "rationale": "build plus verify",
  "workflow": [
    {"agent_role": "BUILDER", "scope": "implement the fix", "constraints": ["no new deps"], "estimated_tokens": 20000, "execution_mode": "sequential", "depends_on": []},
    {"agent_role": "TESTER", "scope": "verify the fix", "constraints": [], "estimated_tokens": 8000, "execution_mode": "sequential", "depends_on": [0]}
  ],
  "total_estimated_cost": 0.4,
  "skip_reasoning": "no docs needed"
}`

func TestDelegatingPlanner_ValidJSON(t *testing.T) {
	registry, _ := newTestRegistry(t, llmtest.Turn{Text: validPlannerJSON})
	planner := NewDelegatingPlanner(registry, NewPlanner(), slog.Default())

	plan, err := planner.PlanTask(context.Background(), "t1", "fix the bug", TypeBugFix)
	require.NoError(t, err)

	require.Len(t, plan.Subtasks, 2)
	assert.Equal(t, models.RoleBuilder, plan.Subtasks[0].Role)
	assert.Equal(t, "implement the fix", plan.Subtasks[0].Description)
	assert.Equal(t, []string{"no new deps"}, plan.Subtasks[0].Constraints)
	assert.Equal(t, []int{0}, plan.Subtasks[1].DependsOn)
	assert.Equal(t, "delegating", plan.Metadata["planner"])
	assert.Equal(t, "medium", plan.Metadata["complexity"])

	// The one-shot planner agent is deleted immediately after the response.
	assert.Empty(t, registry.GetActive())
}

func TestDelegatingPlanner_FallbackOnProse(t *testing.T) {
	registry, _ := newTestRegistry(t, llmtest.Turn{Text: "I think we should start by analyzing..."})
	planner := NewDelegatingPlanner(registry, NewPlanner(), slog.Default())

	plan, err := planner.PlanTask(context.Background(), "t1", "fix the bug", TypeBugFix)
	require.NoError(t, err)

	// Template plan for bug_fix, with the fallback reason recorded.
	assert.Len(t, plan.Subtasks, 5)
	assert.Equal(t, "template", plan.Metadata["planner"])
	assert.Contains(t, plan.Metadata["planner_fallback"], "not valid JSON")
	assert.Empty(t, registry.GetActive())
}

func TestDelegatingPlanner_FallbackOnUnknownRole(t *testing.T) {
	badRole := `{"complexity": "simple", "rationale": "r", "workflow": [
		{"agent_role": "WIZARD", "scope": "cast", "constraints": [], "estimated_tokens": 1, "execution_mode": "sequential", "depends_on": []}
	], "total_estimated_cost": 0, "skip_reasoning": ""}`

	registry, _ := newTestRegistry(t, llmtest.Turn{Text: badRole})
	planner := NewDelegatingPlanner(registry, NewPlanner(), slog.Default())

	plan, err := planner.PlanTask(context.Background(), "t1", "fix the bug", TypeBugFix)
	require.NoError(t, err)
	assert.Equal(t, "template", plan.Metadata["planner"])
	assert.Contains(t, plan.Metadata["planner_fallback"], "unknown agent role")
}

func TestDelegatingPlanner_FallbackOnMissingFields(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing complexity", `{"workflow": [{"agent_role": "BUILDER", "scope": "s"}]}`},
		{"empty workflow", `{"complexity": "simple", "workflow": []}`},
		{"missing scope", `{"complexity": "simple", "workflow": [{"agent_role": "BUILDER"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, _ := newTestRegistry(t, llmtest.Turn{Text: tt.json})
			planner := NewDelegatingPlanner(registry, NewPlanner(), slog.Default())

			plan, err := planner.PlanTask(context.Background(), "t1", "fix it quickly", TypeSimpleFix)
			require.NoError(t, err)
			assert.Equal(t, "template", plan.Metadata["planner"])
			assert.NotEmpty(t, plan.Metadata["planner_fallback"])
		})
	}
}

func TestDelegatingPlanner_FallbackOnAgentFailure(t *testing.T) {
	registry, _ := newTestRegistry(t, llmtest.ErrTurn("", assert.AnError))
	planner := NewDelegatingPlanner(registry, NewPlanner(), slog.Default())

	plan, err := planner.PlanTask(context.Background(), "t1", "fix the bug", TypeBugFix)
	require.NoError(t, err)
	assert.Contains(t, plan.Metadata["planner_fallback"], "planner agent failed")
}
