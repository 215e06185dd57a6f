package models

import "time"

// AgentMetrics tracks cumulative cost and usage for one agent session.
// Every counter is monotonically non-decreasing until the agent is deleted,
// and TotalTokens always equals the sum of the four token counters.
type AgentMetrics struct {
	AgentID string `json:"agent_id"`

	TotalTokens         int `json:"total_tokens"`
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`

	TotalCostUSD float64 `json:"total_cost_usd"`
	ToolCalls    int     `json:"tool_calls"`
	MessagesSent int     `json:"messages_sent"`

	// Ordered, deduplicated file paths touched via Read / Write / Edit tools.
	FilesRead    []string `json:"files_read"`
	FilesWritten []string `json:"files_written"`

	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAgentMetrics returns a zeroed metrics record for the given agent.
func NewAgentMetrics(agentID string) AgentMetrics {
	now := time.Now().UTC()
	return AgentMetrics{AgentID: agentID, CreatedAt: now, UpdatedAt: now}
}

// AddUsage accumulates token counters and cost from one SDK result message
// and recomputes TotalTokens from the four counters.
func (m *AgentMetrics) AddUsage(input, output, cacheCreation, cacheRead int, costUSD float64) {
	m.InputTokens += input
	m.OutputTokens += output
	m.CacheCreationTokens += cacheCreation
	m.CacheReadTokens += cacheRead
	m.TotalTokens = m.InputTokens + m.OutputTokens + m.CacheCreationTokens + m.CacheReadTokens
	m.TotalCostUSD += costUSD
	m.UpdatedAt = time.Now().UTC()
}

// RecordFileRead appends the path to FilesRead if not already present.
func (m *AgentMetrics) RecordFileRead(path string) {
	m.FilesRead = appendUnique(m.FilesRead, path)
}

// RecordFileWritten appends the path to FilesWritten if not already present.
func (m *AgentMetrics) RecordFileWritten(path string) {
	m.FilesWritten = appendUnique(m.FilesWritten, path)
}

// Add accumulates another agent's metrics into this one, component-wise.
// File lists are concatenated and deduplicated in order of first appearance.
func (m *AgentMetrics) Add(other AgentMetrics) {
	m.InputTokens += other.InputTokens
	m.OutputTokens += other.OutputTokens
	m.CacheCreationTokens += other.CacheCreationTokens
	m.CacheReadTokens += other.CacheReadTokens
	m.TotalTokens += other.TotalTokens
	m.TotalCostUSD += other.TotalCostUSD
	m.ToolCalls += other.ToolCalls
	m.MessagesSent += other.MessagesSent
	m.ExecutionTimeSeconds += other.ExecutionTimeSeconds
	for _, f := range other.FilesRead {
		m.FilesRead = appendUnique(m.FilesRead, f)
	}
	for _, f := range other.FilesWritten {
		m.FilesWritten = appendUnique(m.FilesWritten, f)
	}
	m.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy safe to hand to readers.
func (m AgentMetrics) Clone() AgentMetrics {
	out := m
	out.FilesRead = append([]string(nil), m.FilesRead...)
	out.FilesWritten = append([]string(nil), m.FilesWritten...)
	return out
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
