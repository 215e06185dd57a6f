// Package metrics aggregates per-agent metrics and lifecycle events across
// the fleet. The collector is safe for concurrent use; all reads return
// snapshots.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/agentfleet/maestro/pkg/models"
)

// Event is one recorded lifecycle event.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
}

// FileFlow summarizes files consumed versus produced across the fleet.
type FileFlow struct {
	Consumed        []string `json:"consumed"`
	Produced        []string `json:"produced"`
	NetFilesCreated int      `json:"net_files_created"`
}

// Summary is a point-in-time aggregate over all recorded agents.
type Summary struct {
	TotalAgents     int     `json:"total_agents"`
	TotalCostUSD    float64 `json:"total_cost_usd"`
	TotalTokens     int     `json:"total_tokens"`
	TotalToolCalls  int     `json:"total_tool_calls"`
	TotalMessages   int     `json:"total_messages"`
	FilesConsumed   int     `json:"files_consumed"`
	FilesProduced   int     `json:"files_produced"`
	NetFilesCreated int     `json:"net_files_created"`
	TotalEvents     int     `json:"total_events"`
}

// Collector aggregates agent metrics and events.
type Collector struct {
	mu           sync.RWMutex
	agentMetrics map[string]models.AgentMetrics
	events       []Event
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{agentMetrics: make(map[string]models.AgentMetrics)}
}

// RecordAgentMetrics stores the latest metrics snapshot for an agent.
func (c *Collector) RecordAgentMetrics(m models.AgentMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentMetrics[m.AgentID] = m.Clone()
}

// RecordEvent appends a lifecycle event.
func (c *Collector) RecordEvent(eventType string, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Data:      data,
	})
}

// AgentMetrics returns the stored metrics for one agent.
func (c *Collector) AgentMetrics(agentID string) (models.AgentMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.agentMetrics[agentID]
	if !ok {
		return models.AgentMetrics{}, false
	}
	return m.Clone(), true
}

// TotalCost sums cost across all recorded agents.
func (c *Collector) TotalCost() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total float64
	for _, m := range c.agentMetrics {
		total += m.TotalCostUSD
	}
	return total
}

// TotalTokens sums tokens across all recorded agents.
func (c *Collector) TotalTokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int
	for _, m := range c.agentMetrics {
		total += m.TotalTokens
	}
	return total
}

// CostByAgent returns the cost breakdown keyed by agent id.
func (c *Collector) CostByAgent() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.agentMetrics))
	for id, m := range c.agentMetrics {
		out[id] = m.TotalCostUSD
	}
	return out
}

// FilesConsumedAndProduced reports the fleet-wide file flow. Net created
// counts produced files that were never consumed.
func (c *Collector) FilesConsumedAndProduced() FileFlow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	consumed := map[string]bool{}
	produced := map[string]bool{}
	for _, m := range c.agentMetrics {
		for _, f := range m.FilesRead {
			consumed[f] = true
		}
		for _, f := range m.FilesWritten {
			produced[f] = true
		}
	}

	netCreated := 0
	for f := range produced {
		if !consumed[f] {
			netCreated++
		}
	}

	return FileFlow{
		Consumed:        sortedKeys(consumed),
		Produced:        sortedKeys(produced),
		NetFilesCreated: netCreated,
	}
}

// GetSummary returns a point-in-time aggregate.
func (c *Collector) GetSummary() Summary {
	flow := c.FilesConsumedAndProduced()

	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := Summary{
		TotalAgents:     len(c.agentMetrics),
		FilesConsumed:   len(flow.Consumed),
		FilesProduced:   len(flow.Produced),
		NetFilesCreated: flow.NetFilesCreated,
		TotalEvents:     len(c.events),
	}
	for _, m := range c.agentMetrics {
		summary.TotalCostUSD += m.TotalCostUSD
		summary.TotalTokens += m.TotalTokens
		summary.TotalToolCalls += m.ToolCalls
		summary.TotalMessages += m.MessagesSent
	}
	return summary
}

// EventsByType filters recorded events by type.
func (c *Collector) EventsByType(eventType string) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// AgentTimeline returns recorded events mentioning the given agent, in order.
func (c *Collector) AgentTimeline(agentID string) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, e := range c.events {
		if id, ok := e.Data["agent_id"].(string); ok && id == agentID {
			out = append(out, e)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
