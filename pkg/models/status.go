package models

import "fmt"

// AgentStatus is the lifecycle state of an agent session.
type AgentStatus string

const (
	StatusCreated   AgentStatus = "created"
	StatusRunning   AgentStatus = "running"
	StatusWaiting   AgentStatus = "waiting"
	StatusCompleted AgentStatus = "completed"
	StatusFailed    AgentStatus = "failed"
	StatusDeleted   AgentStatus = "deleted"
)

// AllStatuses lists every agent status, in a stable order.
var AllStatuses = []AgentStatus{
	StatusCreated,
	StatusRunning,
	StatusWaiting,
	StatusCompleted,
	StatusFailed,
	StatusDeleted,
}

// legalTransitions is the agent state machine. RUNNING is entered from CREATED
// on the initial task, and re-entered from COMPLETED or WAITING on
// continuation turns, which park the session in WAITING afterwards.
var legalTransitions = map[AgentStatus][]AgentStatus{
	StatusCreated:   {StatusRunning, StatusDeleted},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusWaiting},
	StatusCompleted: {StatusRunning, StatusDeleted},
	StatusFailed:    {StatusDeleted},
	StatusWaiting:   {StatusRunning, StatusDeleted},
}

// CanTransition reports whether from → to is a legal status transition.
func CanTransition(from, to AgentStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing an illegal transition.
func ValidateTransition(from, to AgentStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal agent status transition %s → %s", from, to)
	}
	return nil
}

// Terminal reports whether the status ends the agent's initial task.
func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDeleted
}

// TaskStatus is the lifecycle state of an orchestrated task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)
