package workflow

import (
	"fmt"
	"strings"

	"github.com/agentfleet/maestro/pkg/models"
)

// Task types accepted by the planner.
const (
	TypeSimpleImplementation  = "simple_implementation"
	TypeSimpleFix             = "simple_fix"
	TypeFeatureImplementation = "feature_implementation"
	TypeBugFix                = "bug_fix"
	TypeCodeReview            = "code_review"
	TypeDocumentation         = "documentation"
	TypeRefactoring           = "refactoring"
	TypeTesting               = "testing"
	TypeInvestigation         = "investigation"
	TypeCustom                = "custom"
	TypeAuto                  = "auto"
)

// taskTemplates is the fixed catalog mapping task type to an ordered role
// pipeline.
var taskTemplates = map[string][]models.AgentRole{
	TypeSimpleImplementation:  {models.RoleBuilder, models.RoleTester},
	TypeSimpleFix:             {models.RoleBuilder, models.RoleTester},
	TypeFeatureImplementation: {models.RoleAnalyst, models.RolePlanner, models.RoleBuilder, models.RoleTester, models.RoleReviewer},
	TypeBugFix:                {models.RoleAnalyst, models.RolePlanner, models.RoleBuilder, models.RoleTester, models.RoleReviewer},
	TypeCodeReview:            {models.RoleAnalyst, models.RolePlanner, models.RoleReviewer, models.RoleTester},
	TypeDocumentation:         {models.RoleAnalyst, models.RolePlanner, models.RoleDocumenter, models.RoleReviewer},
	TypeRefactoring:           {models.RoleAnalyst, models.RolePlanner, models.RoleBuilder, models.RoleTester, models.RoleReviewer},
	TypeTesting:               {models.RoleAnalyst, models.RoleTester, models.RoleReviewer},
	TypeInvestigation:         {models.RoleAnalyst, models.RolePlanner},
}

// complexKeywords force the complex classification regardless of length.
var complexKeywords = []string{
	"refactor", "redesign", "migrate", "architecture", "research",
	"analyze", "investigate", "comprehensive", "system", "multiple",
}

// simpleWordLimit is the exclusive word-count bound for simple tasks:
// descriptions of 50 or more words are complex.
const simpleWordLimit = 50

// Complexity is the outcome of the task complexity heuristic.
type Complexity struct {
	Level          string             `json:"complexity"`
	WordCount      int                `json:"word_count"`
	Keywords       []string           `json:"keywords"`
	SuggestedRoles []models.AgentRole `json:"suggested_roles"`
}

// Planner builds plans from task descriptions.
type Planner struct{}

// NewPlanner creates a template planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// EstimateComplexity classifies a description as simple or complex and
// suggests roles for auto-mode parallel fan-out. A task is simple iff it has
// fewer than 50 words and none of the complexity keywords.
func (p *Planner) EstimateComplexity(description string) Complexity {
	words := strings.Fields(description)
	lowered := strings.ToLower(description)

	var hits []string
	for _, kw := range complexKeywords {
		if strings.Contains(lowered, kw) {
			hits = append(hits, kw)
		}
	}

	c := Complexity{
		Level:     "complex",
		WordCount: len(words),
		Keywords:  hits,
	}
	if len(words) < simpleWordLimit && len(hits) == 0 {
		c.Level = "simple"
	}

	c.SuggestedRoles = suggestRoles(lowered)
	return c
}

// suggestRoles derives a role set from keyword hits in the description.
func suggestRoles(lowered string) []models.AgentRole {
	var roles []models.AgentRole
	add := func(role models.AgentRole) {
		for _, existing := range roles {
			if existing == role {
				return
			}
		}
		roles = append(roles, role)
	}

	if containsAny(lowered, "analyze", "research", "investigate", "debug") {
		add(models.RoleAnalyst)
	}
	if containsAny(lowered, "implement", "build", "create", "add", "fix", "feature") {
		add(models.RoleBuilder)
	}
	if containsAny(lowered, "test", "validate", "verify") {
		add(models.RoleTester)
	}
	if containsAny(lowered, "review", "audit") {
		add(models.RoleReviewer)
	}
	if containsAny(lowered, "document", "docs", "readme") {
		add(models.RoleDocumenter)
	}
	if len(roles) == 0 {
		add(models.RoleAnalyst)
	}
	return roles
}

// PlanTask builds a sequential plan for an explicit task type, or runs the
// heuristic for custom/auto. Unknown task types are an error surfaced before
// any agent is spawned.
func (p *Planner) PlanTask(taskID, description, taskType string) (*models.Plan, error) {
	roles, ok := taskTemplates[taskType]
	if !ok {
		if taskType != TypeCustom && taskType != TypeAuto {
			return nil, fmt.Errorf("unknown task type %q", taskType)
		}
		roles = p.heuristicRoles(description)
	}

	plan := models.NewPlan(taskID, description)
	plan.Metadata["task_type"] = taskType
	plan.Metadata["planner"] = "template"
	for _, role := range roles {
		plan.Subtasks = append(plan.Subtasks, models.Subtask{
			Role:          role,
			Description:   roleScope(role, description),
			ExecutionMode: models.ModeSequential,
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// heuristicRoles maps a custom description to a template via the complexity
// classifier: simple fixes and implementations get the two-role pipelines;
// everything else gets the matching complex template.
func (p *Planner) heuristicRoles(description string) []models.AgentRole {
	complexity := p.EstimateComplexity(description)
	lowered := strings.ToLower(description)

	if complexity.Level == "simple" {
		if containsAny(lowered, "fix", "bug", "typo", "broken") {
			return taskTemplates[TypeSimpleFix]
		}
		return taskTemplates[TypeSimpleImplementation]
	}

	switch {
	case containsAny(lowered, "fix", "bug"):
		return taskTemplates[TypeBugFix]
	case containsAny(lowered, "refactor", "redesign", "migrate"):
		return taskTemplates[TypeRefactoring]
	case containsAny(lowered, "document", "docs"):
		return taskTemplates[TypeDocumentation]
	case containsAny(lowered, "review"):
		return taskTemplates[TypeCodeReview]
	case containsAny(lowered, "test"):
		return taskTemplates[TypeTesting]
	case containsAny(lowered, "investigate", "research", "analyze"):
		return taskTemplates[TypeInvestigation]
	default:
		return taskTemplates[TypeFeatureImplementation]
	}
}

// PlanParallel builds a plan with one parallel subtask per role, each
// receiving the full task description as its scope.
func (p *Planner) PlanParallel(taskID, description string, roles []models.AgentRole) (*models.Plan, error) {
	plan := models.NewPlan(taskID, description)
	plan.Metadata["planner"] = "template"
	plan.Metadata["task_type"] = TypeAuto
	for _, role := range roles {
		plan.Subtasks = append(plan.Subtasks, models.Subtask{
			Role:          role,
			Description:   description,
			ExecutionMode: models.ModeParallel,
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// roleScope phrases a role's share of the overall task.
func roleScope(role models.AgentRole, description string) string {
	switch role {
	case models.RoleAnalyst:
		return "Research requirements and analyze the existing codebase for: " + description
	case models.RolePlanner:
		return "Create an implementation plan based on the analysis for: " + description
	case models.RoleBuilder:
		return "Implement the following, guided by the plan: " + description
	case models.RoleTester:
		return "Write and run tests validating: " + description
	case models.RoleReviewer:
		return "Review that the implementation meets the requirements of: " + description
	case models.RoleDocumenter:
		return "Write documentation for: " + description
	default:
		return description
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
