package agent

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/agentfleet/maestro/pkg/agentlog"
	"github.com/agentfleet/maestro/pkg/agent/prompt"
	"github.com/agentfleet/maestro/pkg/events"
	"github.com/agentfleet/maestro/pkg/llm"
	"github.com/agentfleet/maestro/pkg/metrics"
	"github.com/agentfleet/maestro/pkg/models"

	"github.com/google/uuid"
)

// ErrAgentNotFound is returned for lookups of unknown or deleted agents.
var ErrAgentNotFound = errors.New("agent not found")

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status models.AgentStatus
	Role   models.AgentRole
}

// FleetSummary aggregates the registry's current population.
type FleetSummary struct {
	TotalAgents  int            `json:"total_agents"`
	ActiveAgents int            `json:"active_agents"`
	ByStatus     map[string]int `json:"by_status"`
	ByRole       map[string]int `json:"by_role"`
	TotalCostUSD float64        `json:"total_cost_usd"`
	TotalTokens  int            `json:"total_tokens"`
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// WorkingDirectory is the default working directory for new agents.
	WorkingDirectory string
	// Model overrides the default model for new agents when non-empty.
	Model string
	// LogDir is the root for per-agent file logs.
	LogDir string
	// LoggingEnabled toggles per-agent file logs.
	LoggingEnabled bool
}

// Registry owns the agent_id → Session map and is the single source of
// truth for agent lifecycles. All mutations go through its methods; callers
// hold Session references for reads only.
type Registry struct {
	client    llm.Client
	bus       *events.Bus
	collector *metrics.Collector
	opts      RegistryOptions
	log       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(client llm.Client, bus *events.Bus, collector *metrics.Collector, opts RegistryOptions, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		client:    client,
		bus:       bus,
		collector: collector,
		opts:      opts,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Create registers a new session in StatusCreated and returns it. A unique
// 128-bit id is generated, the metrics baseline recorded, and an
// agent_created event published.
func (r *Registry) Create(config models.AgentConfig) *Session {
	agentID := uuid.New().String()

	if config.WorkingDirectory == "" {
		config.WorkingDirectory = r.opts.WorkingDirectory
	}
	if config.Model == "" && r.opts.Model != "" {
		config.Model = r.opts.Model
	}
	config.ApplyDefaults()

	logger := agentlog.New(r.opts.LogDir, config.TaskID, agentID, config.Name, r.opts.LoggingEnabled, r.log)
	session := NewSession(agentID, config, r.client, logger, r.log)

	r.mu.Lock()
	r.sessions[agentID] = session
	r.mu.Unlock()

	r.log.Info("Agent created",
		"agent_id", agentID, "name", config.Name, "role", config.Role, "model", config.Model)
	r.collector.RecordAgentMetrics(session.Metrics())
	r.collector.RecordEvent("agent_created", map[string]any{
		"agent_id": agentID, "name": config.Name, "role": string(config.Role),
	})
	r.bus.Publish(events.AgentCreated,
		events.AgentCreatedData(agentID, config.Name, string(config.Role), config.TaskID))

	return session
}

// CreateSpecialized builds a session for a role: the role's system prompt is
// filled with the task context and constraints, then Create does the rest.
func (r *Registry) CreateSpecialized(role models.AgentRole, taskContext string, constraints []string, taskID string) *Session {
	return r.Create(models.AgentConfig{
		Name:         role.DisplayName(),
		Role:         role,
		SystemPrompt: prompt.BuildSystemPrompt(role, taskContext, constraints),
		TaskID:       taskID,
	})
}

// Get returns the session for an id.
func (r *Registry) Get(agentID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return session, nil
}

// List returns sessions matching the filter, in unspecified order.
func (r *Registry) List(filter ListFilter) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, session := range r.sessions {
		if filter.Status != "" && session.Status() != filter.Status {
			continue
		}
		if filter.Role != "" && session.Config().Role != filter.Role {
			continue
		}
		out = append(out, session)
	}
	return out
}

// GetActive returns all non-deleted sessions.
func (r *Registry) GetActive() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, session := range r.sessions {
		if session.Status() != models.StatusDeleted {
			out = append(out, session)
		}
	}
	return out
}

// UpdateStatus transitions an agent, enforcing the state machine, and
// publishes a status-change task update.
func (r *Registry) UpdateStatus(agentID string, status models.AgentStatus) error {
	session, err := r.Get(agentID)
	if err != nil {
		return err
	}

	old := session.Status()
	if err := models.ValidateTransition(old, status); err != nil {
		return err
	}
	session.setStatus(status)

	r.log.Info("Agent status changed",
		"agent_id", agentID, "old_status", old, "new_status", status)
	r.collector.RecordEvent("status_change", map[string]any{
		"agent_id": agentID, "old_status": string(old), "new_status": string(status),
	})
	r.bus.Publish(events.TaskUpdate,
		events.StatusChangeData(agentID, session.Config().TaskID, string(old), string(status)))
	return nil
}

// Delete cleans up an agent and removes it from the map. The agent is
// removed even if cleanup-side logging fails. Returns false for unknown ids.
func (r *Registry) Delete(agentID string) bool {
	r.mu.Lock()
	session, ok := r.sessions[agentID]
	if ok {
		delete(r.sessions, agentID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	finalMetrics := session.Metrics()
	taskID := session.Config().TaskID
	session.Cleanup()

	r.log.Info("Agent deleted",
		"agent_id", agentID,
		"total_cost_usd", finalMetrics.TotalCostUSD,
		"total_tokens", finalMetrics.TotalTokens)
	r.collector.RecordAgentMetrics(finalMetrics)
	r.collector.RecordEvent("agent_deleted", map[string]any{"agent_id": agentID})
	r.bus.Publish(events.AgentDeleted, events.AgentLifecycleData(agentID, taskID))

	return true
}

// DeleteAll deletes every agent and returns the count deleted.
func (r *Registry) DeleteAll() int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	count := 0
	for _, id := range ids {
		if r.Delete(id) {
			count++
		}
	}
	return count
}

// CleanupCompleted deletes agents in StatusCompleted or StatusFailed and
// returns the count deleted.
func (r *Registry) CleanupCompleted() int {
	r.mu.RLock()
	var ids []string
	for id, session := range r.sessions {
		status := session.Status()
		if status == models.StatusCompleted || status == models.StatusFailed {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	count := 0
	for _, id := range ids {
		if r.Delete(id) {
			count++
		}
	}
	return count
}

// TotalCost sums the current cost across all registered agents.
func (r *Registry) TotalCost() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total float64
	for _, session := range r.sessions {
		total += session.Metrics().TotalCostUSD
	}
	return total
}

// TotalTokens sums tokens across all registered agents.
func (r *Registry) TotalTokens() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int
	for _, session := range r.sessions {
		total += session.Metrics().TotalTokens
	}
	return total
}

// FleetSummary snapshots the current fleet population and totals.
func (r *Registry) FleetSummary() FleetSummary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	summary := FleetSummary{
		ByStatus: make(map[string]int, len(models.AllStatuses)),
		ByRole:   make(map[string]int, len(models.AllRoles)),
	}
	for _, status := range models.AllStatuses {
		summary.ByStatus[string(status)] = 0
	}
	for _, role := range models.AllRoles {
		summary.ByRole[string(role)] = 0
	}

	for _, session := range sessions {
		summary.TotalAgents++
		status := session.Status()
		if status != models.StatusDeleted {
			summary.ActiveAgents++
		}
		summary.ByStatus[string(status)]++
		summary.ByRole[string(session.Config().Role)]++
		m := session.Metrics()
		summary.TotalCostUSD += m.TotalCostUSD
		summary.TotalTokens += m.TotalTokens
	}
	return summary
}
