// Package models defines the core domain types shared across the orchestrator:
// agent roles, lifecycle statuses, configuration records, metrics, plans, and
// task results.
package models

import "fmt"

// AgentRole identifies the specialization of an agent. The string values are
// stable wire identifiers (lowercase) used in persistence and event payloads.
type AgentRole string

const (
	RoleOrchestrator AgentRole = "orchestrator"
	RolePlanner      AgentRole = "planner"
	RoleBuilder      AgentRole = "builder"
	RoleReviewer     AgentRole = "reviewer"
	RoleAnalyst      AgentRole = "analyst"
	RoleTester       AgentRole = "tester"
	RoleDocumenter   AgentRole = "documenter"
	RoleCustom       AgentRole = "custom"
)

// AllRoles lists every known role, in a stable order.
var AllRoles = []AgentRole{
	RoleOrchestrator,
	RolePlanner,
	RoleBuilder,
	RoleReviewer,
	RoleAnalyst,
	RoleTester,
	RoleDocumenter,
	RoleCustom,
}

// ParseRole converts a wire string (case-insensitive) into an AgentRole.
// Planner agents emit roles in uppercase; normalize before matching.
func ParseRole(s string) (AgentRole, error) {
	for _, role := range AllRoles {
		if string(role) == lowerASCII(s) {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown agent role %q", s)
}

// DisplayName returns the human-readable agent name for a role,
// e.g. "Builder Agent".
func (r AgentRole) DisplayName() string {
	if r == "" {
		return "Agent"
	}
	b := []byte(r)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b) + " Agent"
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
