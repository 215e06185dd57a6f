package workflow

import (
	"strings"
	"testing"

	"github.com/agentfleet/maestro/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordsOfLength(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestEstimateComplexity(t *testing.T) {
	p := NewPlanner()

	tests := []struct {
		name        string
		description string
		want        string
	}{
		{"49 plain words is simple", wordsOfLength(49), "simple"},
		{"exactly 50 plain words is complex", wordsOfLength(50), "complex"},
		{"short description with keyword is complex", "Refactor X", "complex"},
		{"keyword anywhere forces complex", "quick change to the system config", "complex"},
		{"short plain fix is simple", "Fix typo in README", "simple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.EstimateComplexity(tt.description).Level)
		})
	}
}

func TestPlanTask_Templates(t *testing.T) {
	p := NewPlanner()

	tests := []struct {
		taskType string
		roles    []models.AgentRole
	}{
		{TypeSimpleImplementation, []models.AgentRole{models.RoleBuilder, models.RoleTester}},
		{TypeSimpleFix, []models.AgentRole{models.RoleBuilder, models.RoleTester}},
		{TypeFeatureImplementation, []models.AgentRole{models.RoleAnalyst, models.RolePlanner, models.RoleBuilder, models.RoleTester, models.RoleReviewer}},
		{TypeBugFix, []models.AgentRole{models.RoleAnalyst, models.RolePlanner, models.RoleBuilder, models.RoleTester, models.RoleReviewer}},
		{TypeCodeReview, []models.AgentRole{models.RoleAnalyst, models.RolePlanner, models.RoleReviewer, models.RoleTester}},
		{TypeDocumentation, []models.AgentRole{models.RoleAnalyst, models.RolePlanner, models.RoleDocumenter, models.RoleReviewer}},
		{TypeRefactoring, []models.AgentRole{models.RoleAnalyst, models.RolePlanner, models.RoleBuilder, models.RoleTester, models.RoleReviewer}},
		{TypeTesting, []models.AgentRole{models.RoleAnalyst, models.RoleTester, models.RoleReviewer}},
		{TypeInvestigation, []models.AgentRole{models.RoleAnalyst, models.RolePlanner}},
	}
	for _, tt := range tests {
		t.Run(tt.taskType, func(t *testing.T) {
			plan, err := p.PlanTask("t1", "do the thing", tt.taskType)
			require.NoError(t, err)
			require.Len(t, plan.Subtasks, len(tt.roles))
			for i, role := range tt.roles {
				assert.Equal(t, role, plan.Subtasks[i].Role)
				assert.Equal(t, models.ModeSequential, plan.Subtasks[i].ExecutionMode)
			}
		})
	}
}

func TestPlanTask_Heuristic(t *testing.T) {
	p := NewPlanner()

	t.Run("simple fix gets the two-role pipeline", func(t *testing.T) {
		plan, err := p.PlanTask("t1", "Fix typo in README", TypeCustom)
		require.NoError(t, err)
		require.Len(t, plan.Subtasks, 2)
		assert.Equal(t, models.RoleBuilder, plan.Subtasks[0].Role)
		assert.Equal(t, models.RoleTester, plan.Subtasks[1].Role)
	})

	t.Run("complex refactor maps to the refactoring template", func(t *testing.T) {
		plan, err := p.PlanTask("t1", "Refactor the storage layer", TypeCustom)
		require.NoError(t, err)
		assert.Len(t, plan.Subtasks, 5)
	})

	t.Run("unknown task type is a plan construction error", func(t *testing.T) {
		_, err := p.PlanTask("t1", "desc", "quantum_debugging")
		assert.Error(t, err)
	})
}

func TestPlanParallel(t *testing.T) {
	p := NewPlanner()

	roles := []models.AgentRole{models.RoleAnalyst, models.RoleAnalyst, models.RoleAnalyst}
	plan, err := p.PlanParallel("t1", "analyze the codebase", roles)
	require.NoError(t, err)
	require.Len(t, plan.Subtasks, 3)
	for _, st := range plan.Subtasks {
		assert.Equal(t, models.ModeParallel, st.ExecutionMode)
		assert.Equal(t, "analyze the codebase", st.Description)
	}
}

func TestSuggestRoles(t *testing.T) {
	p := NewPlanner()

	c := p.EstimateComplexity("analyze and test the billing module")
	assert.Contains(t, c.SuggestedRoles, models.RoleAnalyst)
	assert.Contains(t, c.SuggestedRoles, models.RoleTester)

	c = p.EstimateComplexity("nothing recognizable here")
	assert.Equal(t, []models.AgentRole{models.RoleAnalyst}, c.SuggestedRoles)
}
