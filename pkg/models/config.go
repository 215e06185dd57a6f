package models

// PermissionMode controls how an agent's tool invocations are authorized.
type PermissionMode string

const (
	// PermissionBypass lets the agent invoke tools without interactive approval.
	PermissionBypass PermissionMode = "bypassPermissions"
	// PermissionAsk requires approval for each tool invocation.
	PermissionAsk PermissionMode = "ask"
)

// DefaultModel is used when a config does not name a model.
const DefaultModel = "claude-sonnet-4-5-20250929"

// AgentConfig is the immutable configuration of an agent session. All fields
// except SessionID are fixed at creation; SessionID is set after the first
// SDK turn so later turns can resume the same conversation.
type AgentConfig struct {
	Name            string    `json:"name"`
	Role            AgentRole `json:"role"`
	Model           string    `json:"model"`
	SystemPrompt    string    `json:"system_prompt"`
	MaxOutputTokens int       `json:"max_output_tokens"`
	Temperature     float64   `json:"temperature"`

	WorkingDirectory string         `json:"working_directory,omitempty"`
	AllowedTools     []string       `json:"allowed_tools,omitempty"`
	PermissionMode   PermissionMode `json:"permission_mode"`

	// SessionID is the SDK conversation token, set after the first turn.
	SessionID string `json:"session_id,omitempty"`
	// TaskID groups the agent's logs and records under its owning task.
	TaskID string `json:"task_id,omitempty"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *AgentConfig) ApplyDefaults() {
	if c.Role == "" {
		c.Role = RoleCustom
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = 8192
	}
	if c.Temperature == 0 {
		c.Temperature = 1.0
	}
	if c.PermissionMode == "" {
		c.PermissionMode = PermissionBypass
	}
	if c.Name == "" {
		c.Name = c.Role.DisplayName()
	}
}
