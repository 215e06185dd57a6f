package api

// ExecuteTaskRequest submits a task for orchestration.
type ExecuteTaskRequest struct {
	Prompt        string `json:"prompt" binding:"required"`
	TaskType      string `json:"task_type"`
	ExecutionMode string `json:"execution_mode"`
}

// CreateAgentRequest creates an agent directly, bypassing the planner.
type CreateAgentRequest struct {
	Role         string `json:"role" binding:"required"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
}

// SendMessageRequest sends a continuation message to an agent.
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}
